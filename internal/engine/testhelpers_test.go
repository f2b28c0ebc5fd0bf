package engine

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/pcopy/internal/event"
)

// createTestTree populates root with a standard test tree:
//
//	root.txt          (17 bytes)
//	big.bin           (640KB, spans several copy blocks)
//	empty/            (empty directory)
//	sub/mid.txt       (19 bytes)
//	sub/deep/leaf.txt (17 bytes)
//	sub/zero.dat      (0 bytes)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "root.txt"), []byte("root file content"), 0o644))

	bigData := bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 40000) // 640KB
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), bigData, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "mid.txt"), []byte("middle file content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "deep", "leaf.txt"), []byte("leaf file content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "zero.dat"), nil, 0o644))
}

var testTreeFiles = []string{
	"root.txt",
	"big.bin",
	"sub/mid.txt",
	"sub/deep/leaf.txt",
	"sub/zero.dat",
}

var testTreeDirs = []string{"empty", "sub", "sub/deep"}

// verifyTreeCopy checks that dstRoot mirrors the tree created by
// createTestTree under srcRoot.
func verifyTreeCopy(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()

	for _, rel := range testTreeFiles {
		require.Equal(t,
			hashFile(t, filepath.Join(srcRoot, rel)),
			hashFile(t, filepath.Join(dstRoot, rel)),
			"content mismatch: %s", rel,
		)
	}

	for _, dir := range testTreeDirs {
		info, err := os.Stat(filepath.Join(dstRoot, dir))
		require.NoError(t, err, "stat dir %s", dir)
		require.True(t, info.IsDir(), "%s should be a directory", dir)
	}
}

func hashFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	h := blake3.Sum256(data)
	return h[:]
}

// eventLog drains an event channel in the background and keeps every
// event for later inspection.
type eventLog struct {
	ch     chan event.Event
	done   chan struct{}
	closer func()
	mu     sync.Mutex
	evs    []event.Event
}

// collectEvents creates a buffered event channel with a collecting
// goroutine. Call wait before inspecting the events; cleanup closes the
// channel if the test did not.
func collectEvents(t *testing.T) *eventLog {
	t.Helper()
	l := &eventLog{ch: make(chan event.Event, 1024), done: make(chan struct{})}
	go func() {
		defer close(l.done)
		for ev := range l.ch {
			l.mu.Lock()
			l.evs = append(l.evs, ev)
			l.mu.Unlock()
		}
	}()
	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(l.ch) }); <-l.done })
	l.closer = func() { once.Do(func() { close(l.ch) }) }
	return l
}

// wait closes the channel and blocks until every event is collected.
func (l *eventLog) wait() []event.Event {
	l.closer()
	<-l.done
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evs
}

func (l *eventLog) ofType(typ event.Type) []event.Event {
	var out []event.Event
	for _, ev := range l.wait() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// recordingSink keeps every status the monitor publishes.
type recordingSink struct {
	mu      sync.Mutex
	updates []Status
	final   *Status
}

func (s *recordingSink) Update(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, st)
}

func (s *recordingSink) Finish(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = &st
}

func (s *recordingSink) all() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Status(nil), s.updates...)
	if s.final != nil {
		out = append(out, *s.final)
	}
	return out
}

// swapOpenSource replaces the source opener for the duration of a test.
// Tests using it must not run in parallel.
func swapOpenSource(t *testing.T, fn func(string) (*os.File, error)) {
	t.Helper()
	prev := openSource
	openSource = fn
	t.Cleanup(func() { openSource = prev })
}

// swapSourceReader replaces the reader stream copies from. Tests using it
// must not run in parallel.
func swapSourceReader(t *testing.T, fn func(*os.File) io.Reader) {
	t.Helper()
	prev := sourceReader
	sourceReader = fn
	t.Cleanup(func() { sourceReader = prev })
}

// panicAfterFirstRead returns data from r once, then panics.
type panicAfterFirstRead struct {
	r    io.Reader
	read bool
}

func (p *panicAfterFirstRead) Read(b []byte) (int, error) {
	if p.read {
		panic("read exploded")
	}
	p.read = true
	return p.r.Read(b)
}
