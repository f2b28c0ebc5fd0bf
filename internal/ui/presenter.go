package ui

import (
	"io"

	"github.com/fatih/color"

	"github.com/bamsammich/pcopy/internal/event"
)

// Event is the engine progress event consumed by presenters.
type Event = event.Event

// Presenter consumes events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan Event) error
}

// Config configures a Presenter.
type Config struct {
	Writer  io.Writer
	Quiet   bool
	NoColor bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	feed := &feedPresenter{w: cfg.Writer, pal: newPalette(cfg.NoColor)}
	if cfg.Quiet {
		return quietPresenter{feed: feed}
	}
	return feed
}

// quietPresenter prints failures only.
type quietPresenter struct {
	feed *feedPresenter
}

func (p quietPresenter) Run(events <-chan Event) error {
	for ev := range events {
		if ev.Type == event.FileFailed || ev.Type == event.DirFailed {
			p.feed.handleEvent(ev)
		}
	}
	return nil
}

// palette holds the colours used by console output.
type palette struct {
	dim    *color.Color
	work   *color.Color
	done   *color.Color
	warn   *color.Color
	fail   *color.Color
	plain  *color.Color
	source *color.Color
	target *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		dim:    color.New(color.FgHiBlack),
		work:   color.New(color.FgMagenta),
		done:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		plain:  color.New(color.FgWhite),
		source: color.New(color.FgHiGreen),
		target: color.New(color.FgHiMagenta),
	}
	for _, c := range []*color.Color{p.dim, p.work, p.done, p.warn, p.fail, p.plain, p.source, p.target} {
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}
