package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bamsammich/pcopy/internal/event"
	"github.com/bamsammich/pcopy/internal/platform"
)

// openSource opens copy sources. Tests swap it to simulate unreadable files.
var openSource = os.Open //nolint:gochecknoglobals // test hook

// sourceReader is what stream reads from once the source is open. Tests
// swap it to fail mid-copy.
var sourceReader = func(f *os.File) io.Reader { return f } //nolint:gochecknoglobals // test hook

// copyFile streams task.SrcPath into its mirrored destination and returns
// the number of bytes written. Nothing is left at the destination unless
// the copy succeeds or the destination itself was the thing that failed to
// open.
func (wp *WorkerPool) copyFile(id int, task CopyTask) (int64, error) {
	dstPath := wp.dstPath(task.RelPath)

	openStart := time.Now()
	src, err := openSource(task.SrcPath)
	wp.checkSlowOpen(id, task, "input", time.Since(openStart))
	if err != nil {
		return 0, &CopyError{Kind: SourceOpen, Path: task.SrcPath, Err: err}
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, &CopyError{Kind: SourceOpen, Path: task.SrcPath, Err: err}
	}
	if !info.Mode().IsRegular() {
		return 0, &CopyError{
			Kind: SourceOpen,
			Path: task.SrcPath,
			Err:  fmt.Errorf("not a regular file (%s)", info.Mode().Type()),
		}
	}

	openStart = time.Now()
	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	wp.checkSlowOpen(id, task, "output", time.Since(openStart))
	if err != nil {
		return 0, &CopyError{Kind: DestinationOpen, Path: dstPath, Err: err}
	}
	inProgress.add(dstPath)
	defer inProgress.release(dstPath)

	// Unless the copy succeeds, dst is closed and removed, also when stream
	// panics. A truncated destination would look like a finished copy.
	closed, done := false, false
	defer func() {
		if done {
			return
		}
		if !closed {
			_ = dst.Close()
		}
		_ = os.Remove(dstPath)
	}()

	wp.events.emit(event.Event{
		Type:     event.FileWork,
		Path:     task.RelPath,
		Depth:    task.Depth,
		Size:     info.Size(),
		WorkerID: id,
	})

	platform.AdviseSequential(src)
	written, err := wp.stream(dst, sourceReader(src))
	cerr := dst.Close()
	closed = true
	if err == nil && cerr != nil {
		err = fmt.Errorf("close: %w", cerr)
	}
	if err != nil {
		return written, &CopyError{Kind: Stream, Path: task.RelPath, Err: err}
	}
	done = true
	return written, nil
}

// stream copies src to dst one block at a time. Every block read is written
// in full or the copy fails.
func (wp *WorkerPool) stream(dst io.Writer, src io.Reader) (int64, error) {
	bufp := wp.bufs.Get()
	defer wp.bufs.Put(bufp)
	buf := *bufp

	if wp.cfg.Limiter != nil {
		// In-flight copies are never cancelled, so the wait is unbounded.
		src = newRateLimitedReader(context.Background(), src, wp.cfg.Limiter)
	}

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, fmt.Errorf("write: %w", werr)
			}
			if w != n {
				return written, fmt.Errorf("write: %w", io.ErrShortWrite)
			}
		}
		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read: %w", rerr)
		}
	}
}

func (wp *WorkerPool) checkSlowOpen(id int, task CopyTask, side string, took time.Duration) {
	if took <= wp.cfg.SlowOpenThreshold {
		return
	}
	wp.events.emit(event.Event{
		Type:     event.SlowOpen,
		Path:     task.RelPath,
		Depth:    task.Depth,
		Duration: took,
		Detail:   side,
		WorkerID: id,
	})
}
