package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/pcopy/internal/engine"
)

func TestConsoleMessages(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)

	c.Start("/data/a", "/backup/a")
	c.Fatal(errors.New("read directory /data/a/x: permission denied"))
	c.Farewell()

	assert.Equal(t,
		"Processing copy of folder /data/a to /backup/a\n"+
			"Copy stopped: read directory /data/a/x: permission denied\n"+
			"Ended. Have a nice day!\n",
		buf.String(),
	)
}

func TestConsoleUsageHint(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	c.UsageHint("pcopy <source> <destination> [flags]", engine.OptionLetters)

	out := buf.String()
	assert.Contains(t, out, "Not enough arguments.")
	assert.Contains(t, out, "Try pcopy <source> <destination> [flags]")
	assert.Contains(t, out, "V: Verbose (show every copy / mkdir)")
}
