package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bamsammich/pcopy/internal/engine"
)

const endedTitle = "Ended!"

// DefaultProgressInterval is how often ProgressSink prints a line.
const DefaultProgressInterval = 5 * time.Second

// TitleSink shows each status sample as the terminal window title.
type TitleSink struct {
	w  io.Writer
	mu sync.Mutex
}

// NewTitleSink writes title escape sequences to w, which should be the
// terminal.
func NewTitleSink(w io.Writer) *TitleSink {
	return &TitleSink{w: w}
}

func (s *TitleSink) Update(st engine.Status) { s.setTitle(st.Line()) }

func (s *TitleSink) Finish(engine.Status) { s.setTitle(endedTitle) }

func (s *TitleSink) setTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\033]0;%s\007", title)
}

// ProgressSink prints the status line at most once per interval, for
// output that is not a terminal.
type ProgressSink struct {
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewProgressSink creates a ProgressSink. A zero interval uses
// DefaultProgressInterval.
func NewProgressSink(w io.Writer, interval time.Duration) *ProgressSink {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressSink{w: w, interval: interval, now: time.Now}
}

func (s *ProgressSink) Update(st engine.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return
	}
	s.last = now
	s.print(st)
}

func (s *ProgressSink) Finish(st engine.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.print(st)
}

// print writes the status line followed by the rolling rates. A paused
// walker is flagged so a stalled file count is not mistaken for a hang.
func (s *ProgressSink) print(st engine.Status) {
	line := fmt.Sprintf("progress: %s | %s, %.1f files/s",
		st.Line(), FormatRate(st.BytesPerSec), st.FilesPerSec)
	if st.Paused {
		line += " | walker paused"
	}
	fmt.Fprintln(s.w, line)
}
