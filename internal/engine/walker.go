package engine

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bamsammich/pcopy/internal/event"
	"github.com/bamsammich/pcopy/internal/stats"
)

// WalkerConfig controls walker behavior.
type WalkerConfig struct {
	Stats   *stats.Collector
	Events  chan<- event.Event
	SrcRoot string
	DstRoot string
	Verbose bool
}

// Walker is the single producer of a copy run. It traverses the source
// tree depth-first in lexical order, mirrors every directory under the
// destination root and queues one CopyTask per regular file.
type Walker struct {
	cfg    WalkerConfig
	queue  *TaskQueue
	bp     *Backpressure
	events emitter
	done   chan struct{}
}

// NewWalker creates a walker that feeds queue, throttled by bp.
func NewWalker(cfg WalkerConfig, queue *TaskQueue, bp *Backpressure) *Walker {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	return &Walker{
		cfg:    cfg,
		queue:  queue,
		bp:     bp,
		events: emitter{ch: cfg.Events, verbose: cfg.Verbose},
		done:   make(chan struct{}),
	}
}

// Done is closed when Walk returns, successfully or not.
func (w *Walker) Done() <-chan struct{} {
	return w.done
}

// Walk traverses the whole source tree. It returns once every file has been
// queued; it does not wait for the copies. Per-entry failures are counted
// and reported as events; only failures to traverse (a missing root, an
// unreadable directory, cancellation) are returned.
func (w *Walker) Walk(ctx context.Context) error {
	defer close(w.done)

	info, err := os.Stat(w.cfg.SrcRoot)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", w.cfg.SrcRoot)
	}

	w.events.emit(event.Event{Type: event.WalkStarted, Path: w.cfg.SrcRoot})
	if err := w.walkDir(ctx, w.cfg.SrcRoot, 0); err != nil {
		return err
	}
	w.events.emit(event.Event{Type: event.WalkComplete, Queued: w.queue.Len()})
	return nil
}

func (w *Walker) walkDir(ctx context.Context, dir string, depth int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, descend, ok := w.classify(dir, de, depth)
		if !ok {
			continue
		}

		if !entry.IsDir {
			if err := w.submit(ctx, entry); err != nil {
				return err
			}
			continue
		}

		w.mirrorDir(entry)
		if descend {
			if err := w.walkDir(ctx, entry.Path, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// classify turns a directory entry into a DirEntry. Symlinks are resolved:
// a link to a file is copied as a file, a link to a directory is mirrored
// as an empty directory but not descended into. Dangling links and special
// files are skipped.
func (w *Walker) classify(dir string, de fs.DirEntry, depth int) (entry DirEntry, descend, ok bool) {
	path := filepath.Join(dir, de.Name())
	rel, err := filepath.Rel(w.cfg.SrcRoot, path)
	if err != nil {
		slog.Debug("skipping entry", "path", path, "error", err)
		return DirEntry{}, false, false
	}
	entry = DirEntry{Path: path, RelPath: filepath.ToSlash(rel), Depth: depth}

	mode := de.Type()
	switch {
	case mode.IsDir():
		entry.IsDir = true
		return entry, true, true
	case mode.IsRegular():
		return entry, false, true
	case mode&fs.ModeSymlink != 0:
		info, err := os.Stat(path)
		if err != nil {
			slog.Debug("skipping dangling symlink", "path", entry.RelPath, "error", err)
			return DirEntry{}, false, false
		}
		switch {
		case info.IsDir():
			entry.IsDir = true
			return entry, false, true
		case info.Mode().IsRegular():
			return entry, false, true
		}
	}

	slog.Debug("skipping special file", "path", entry.RelPath, "mode", mode.String())
	return DirEntry{}, false, false
}

// mirrorDir creates the destination directory for entry. Failure is
// reported and the walk continues.
func (w *Walker) mirrorDir(entry DirEntry) {
	dst := filepath.Join(w.cfg.DstRoot, filepath.FromSlash(entry.RelPath))
	if err := os.MkdirAll(dst, 0o755); err != nil {
		cerr := &CopyError{Kind: DirectoryCreate, Path: entry.RelPath, Err: err}
		w.cfg.Stats.AddDirsFailed(1)
		slog.Debug("mkdir failed", "path", entry.RelPath, "errno", Errno(err), "error", err)
		w.events.emit(event.Event{
			Type:  event.DirFailed,
			Path:  entry.RelPath,
			Depth: entry.Depth,
			Error: cerr,
		})
		return
	}
	w.cfg.Stats.AddDirsCreated(1)
	w.events.emit(event.Event{Type: event.DirCreated, Path: entry.RelPath, Depth: entry.Depth})
}

// submit waits for queue room, then counts and queues the file. The file is
// counted as discovered before any worker can see it.
func (w *Walker) submit(ctx context.Context, entry DirEntry) error {
	if err := w.bp.Wait(ctx); err != nil {
		return err
	}

	w.cfg.Stats.AddDiscovered(1)
	err := w.queue.Push(CopyTask{
		SrcPath:  entry.Path,
		RelPath:  entry.RelPath,
		Depth:    entry.Depth,
		Enqueued: time.Now(),
	})
	if err != nil {
		// Keep completed+errored == discovered once the run ends.
		w.cfg.Stats.AddErrored(1)
		return fmt.Errorf("queue %s: %w", entry.RelPath, err)
	}
	return nil
}
