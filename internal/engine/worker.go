package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/pcopy/internal/event"
	"github.com/bamsammich/pcopy/internal/platform"
	"github.com/bamsammich/pcopy/internal/stats"
)

// WorkerConfig controls worker behavior.
type WorkerConfig struct {
	Stats             *stats.Collector
	Limiter           *rate.Limiter // nil disables bandwidth limiting
	Events            chan<- event.Event
	DstRoot           string
	NumWorkers        int
	BlockSize         int
	SlowOpenThreshold time.Duration
	Verbose           bool
}

// WorkerStatus is the live state of one worker. Fields are written only by
// the owning worker and read by the monitor; stale reads are fine.
type WorkerStatus struct {
	busy atomic.Bool
	wait atomic.Int64 // ns the last task sat in the queue
	run  atomic.Int64 // ns the last task took to execute
}

// StatusSample is a copy of a WorkerStatus taken at one instant.
type StatusSample struct {
	Wait time.Duration
	Run  time.Duration
	Busy bool
}

// WorkerPool runs a fixed set of long-lived copy workers that consume a
// TaskQueue until it is closed and drained.
type WorkerPool struct {
	cfg      WorkerConfig
	queue    *TaskQueue
	bufs     *platform.BufferPool
	events   emitter
	statuses []WorkerStatus
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWorkerPool creates a pool and starts its workers.
func NewWorkerPool(cfg WorkerConfig, queue *TaskQueue) *WorkerPool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.SlowOpenThreshold <= 0 {
		cfg.SlowOpenThreshold = DefaultSlowOpenThreshold
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	wp := &WorkerPool{
		cfg:      cfg,
		queue:    queue,
		bufs:     platform.NewBufferPool(cfg.BlockSize),
		events:   emitter{ch: cfg.Events, verbose: cfg.Verbose},
		statuses: make([]WorkerStatus, cfg.NumWorkers),
	}

	wp.wg.Add(cfg.NumWorkers)
	for id := range cfg.NumWorkers {
		go wp.work(id)
	}
	return wp
}

func (wp *WorkerPool) work(id int) {
	defer wp.wg.Done()
	st := &wp.statuses[id]

	for {
		task, ok := wp.queue.Pop()
		if !ok {
			return
		}
		picked := time.Now()
		st.wait.Store(int64(picked.Sub(task.Enqueued)))
		st.busy.Store(true)

		wp.runTask(id, task)

		st.run.Store(int64(time.Since(picked)))
		st.busy.Store(false)
		wp.queue.Done()
	}
}

// runTask copies one file and settles its counters: exactly one of
// completed or errored is incremented per task.
func (wp *WorkerPool) runTask(id int, task CopyTask) {
	start := time.Now()
	wp.events.emit(event.Event{
		Type:     event.FileStarted,
		Path:     task.RelPath,
		Depth:    task.Depth,
		WorkerID: id,
	})

	n, err := wp.safeCopy(id, task)
	if err != nil {
		wp.cfg.Stats.AddErrored(1)
		slog.Debug("copy failed",
			"path", task.RelPath,
			"kind", KindOf(err).String(),
			"errno", Errno(err),
			"error", err,
		)
		wp.events.emit(event.Event{
			Type:     event.FileFailed,
			Path:     task.RelPath,
			Depth:    task.Depth,
			Size:     n,
			Error:    err,
			WorkerID: id,
		})
		return
	}

	wp.cfg.Stats.AddCompleted(1)
	wp.cfg.Stats.AddBytesCopied(n)
	wp.events.emit(event.Event{
		Type:     event.FileCompleted,
		Path:     task.RelPath,
		Depth:    task.Depth,
		Size:     n,
		Duration: time.Since(start),
		WorkerID: id,
	})
}

// safeCopy turns a panic inside one copy into an error for that task so
// the worker survives.
func (wp *WorkerPool) safeCopy(id int, task CopyTask) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CopyError{Kind: Stream, Path: task.RelPath, Err: fmt.Errorf("worker panic: %v", r)}
		}
	}()
	return wp.copyFile(id, task)
}

func (wp *WorkerPool) dstPath(rel string) string {
	return filepath.Join(wp.cfg.DstRoot, filepath.FromSlash(rel))
}

// Size returns the number of workers.
func (wp *WorkerPool) Size() int { return len(wp.statuses) }

// QueueLen returns the current queue depth.
func (wp *WorkerPool) QueueLen() int { return wp.queue.Len() }

// Busy returns the number of workers currently executing a task.
func (wp *WorkerPool) Busy() int {
	n := 0
	for i := range wp.statuses {
		if wp.statuses[i].busy.Load() {
			n++
		}
	}
	return n
}

// Statuses returns a snapshot of every worker's status.
func (wp *WorkerPool) Statuses() []StatusSample {
	out := make([]StatusSample, len(wp.statuses))
	for i := range wp.statuses {
		st := &wp.statuses[i]
		out[i] = StatusSample{
			Busy: st.busy.Load(),
			Wait: time.Duration(st.wait.Load()),
			Run:  time.Duration(st.run.Load()),
		}
	}
	return out
}

// Idle reports whether no task is queued or running.
func (wp *WorkerPool) Idle() bool { return wp.queue.Idle() }

// Close closes the queue and waits for every worker to exit. Tasks still
// queued are executed first; in-flight copies are never interrupted.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.queue.Close()
		wp.wg.Wait()
	})
}
