package engine

import (
	"time"

	"github.com/bamsammich/pcopy/internal/event"
)

// emitter forwards events to the presenter. Verbose-only event types are
// dropped unless verbose is set. Sends block so failure lines are never
// lost; the presenter drains the channel until the run ends.
type emitter struct {
	ch      chan<- event.Event
	verbose bool
}

func (e emitter) emit(ev event.Event) {
	if e.ch == nil {
		return
	}
	if ev.Type.Verbose() && !e.verbose {
		return
	}
	ev.Timestamp = time.Now()
	e.ch <- ev
}
