package ui

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/bamsammich/pcopy/internal/engine"
)

// RenderSummary writes the end-of-run table for res.
func RenderSummary(w io.Writer, res engine.Result) error {
	snap := res.Stats
	avg := 0.0
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		avg = float64(snap.BytesCopied) / secs
	}

	rows := [][]string{
		{"Files found", FormatCount(snap.Discovered)},
		{"Files copied", FormatCount(snap.Completed)},
		{"Files failed", FormatCount(snap.Errored)},
		{"Folders created", FormatCount(snap.DirsCreated)},
		{"Folders failed", FormatCount(snap.DirsFailed)},
		{"Data copied", FormatBytes(snap.BytesCopied)},
		{"Average speed", FormatRate(avg)},
		{"Elapsed", FormatDuration(snap.Elapsed)},
		{"Workers", strconv.Itoa(res.Workers)},
		{"Queue watermarks", fmt.Sprintf("%d / %d", res.HighWatermark, res.LowWatermark)},
		{"Peak queue", strconv.Itoa(res.PeakQueue)},
		{"Walker pauses", fmt.Sprintf("%d (%s)", res.Pauses, res.PausedFor.Round(time.Millisecond))},
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return fmt.Errorf("summary row %s: %w", row[0], err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
