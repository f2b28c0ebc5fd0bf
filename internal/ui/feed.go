package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bamsammich/pcopy/internal/engine"
	"github.com/bamsammich/pcopy/internal/event"
)

// feedPresenter prints one coloured line per event, indented by tree
// depth. Per-file lines only arrive when the engine runs verbose.
type feedPresenter struct {
	w   io.Writer
	pal palette
}

func (p *feedPresenter) Run(events <-chan Event) error {
	for ev := range events {
		p.handleEvent(ev)
	}
	return nil
}

func (p *feedPresenter) handleEvent(ev Event) {
	indent := strings.Repeat(" ", ev.Depth)

	switch ev.Type {
	case event.WalkStarted:
		p.pal.done.Fprintln(p.w, "Walking source tree. Copies start as files are found...")
	case event.WalkPaused:
		p.pal.done.Fprintf(p.w, "Walker paused, %d files queued. Waiting for the queue to drain...\n", ev.Queued)
	case event.WalkResumed:
		p.pal.done.Fprintf(p.w, "Walker resumed at %d queued files.\n", ev.Queued)
	case event.WalkComplete:
		p.pal.done.Fprintln(p.w, "Walk ended! All files queued.")

	case event.DirCreated:
		p.pal.dim.Fprintf(p.w, "%sFolder -> /%s\n", indent, ev.Path)
	case event.DirFailed:
		p.pal.fail.Fprintf(p.w, "%sError code #%d when creating folder %s. Details: %s\n",
			indent, engine.Errno(ev.Error), ev.Path, detail(ev.Error))

	case event.FileStarted:
		p.pal.dim.Fprintf(p.w, "%sBEGIN: %s\n", indent, ev.Path)
	case event.FileWork:
		p.pal.work.Fprintf(p.w, "%sWORK: %s; size=%d byte(s)\n", indent, ev.Path, ev.Size)
	case event.FileCompleted:
		p.pal.done.Fprintf(p.w, "%sENDED: %s; size=%d byte(s) [t: %g sec(s)]\n",
			indent, ev.Path, ev.Size, float64(ev.Duration.Milliseconds())/1000)
	case event.SlowOpen:
		p.pal.warn.Fprintf(p.w, "%sWARN: %s took some time to open %s!\n", indent, ev.Path, ev.Detail)
	case event.FileFailed:
		p.pal.fail.Fprintf(p.w, "%s%s\n", indent, failureLine(ev))
	}
}

func failureLine(ev Event) string {
	var ce *engine.CopyError
	if !errors.As(ev.Error, &ce) {
		return fmt.Sprintf("Copy of %s failed: %v. Skipped.", ev.Path, ev.Error)
	}
	switch ce.Kind {
	case engine.SourceOpen:
		return fmt.Sprintf("Cannot open file for reading: %s. Skipped.", ce.Path)
	case engine.DestinationOpen:
		return fmt.Sprintf("Cannot open file for writing: %s. Skipped.", ce.Path)
	default:
		return fmt.Sprintf("Copy of %s failed: %s. Skipped.", ev.Path, detail(ce))
	}
}

// detail returns the innermost message of err, without the path prefixes
// added on the way up.
func detail(err error) string {
	if err == nil {
		return "unknown error"
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
