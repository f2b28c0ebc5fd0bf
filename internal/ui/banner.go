package ui

import (
	"io"

	"github.com/bamsammich/pcopy/internal/engine"
)

// Console prints the fixed messages around a run.
type Console struct {
	w   io.Writer
	pal palette
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer, noColor bool) *Console {
	return &Console{w: w, pal: newPalette(noColor)}
}

// Start announces the copy of src into dst.
func (c *Console) Start(src, dst string) {
	c.pal.plain.Fprint(c.w, "Processing copy of folder ")
	c.pal.source.Fprint(c.w, src)
	c.pal.plain.Fprint(c.w, " to ")
	c.pal.target.Fprintln(c.w, dst)
}

// Farewell closes a run that was not stopped by a fatal error.
func (c *Console) Farewell() {
	c.pal.done.Fprintln(c.w, "Ended. Have a nice day!")
}

// Fatal reports an error that stopped the walk.
func (c *Console) Fatal(err error) {
	c.pal.fail.Fprintf(c.w, "Copy stopped: %v\n", err)
}

// UsageHint explains the positional arguments and every flag letter.
func (c *Console) UsageHint(usage string, letters []engine.OptionLetter) {
	c.pal.warn.Fprintln(c.w, "Not enough arguments.")
	c.pal.warn.Fprintf(c.w, "Try %s\n", usage)
	c.pal.warn.Fprintln(c.w, "Flags (concatenate them):")
	for _, l := range letters {
		c.pal.warn.Fprintf(c.w, "%c: %s\n", l.Letter, l.Help)
	}
}
