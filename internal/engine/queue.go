package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrQueueClosed is returned by Push after Close.
var ErrQueueClosed = errors.New("task queue is closed")

// compactThreshold is the number of consumed slots at the head of the
// backing slice after which the live tail is moved to the front.
const compactThreshold = 1024

// TaskQueue is an unbounded FIFO of copy tasks shared by one producer and
// many consumers. Pop blocks while the queue is empty. The depth is
// readable without taking the lock; the backpressure controller bounds it.
type TaskQueue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []CopyTask
	head     int
	inflight int
	closed   bool

	depth atomic.Int64
	peak  atomic.Int64
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a task and wakes one waiting consumer. The task's Enqueued
// time is stamped here unless already set.
func (q *TaskQueue) Push(task CopyTask) error {
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, task)
	n := int64(len(q.items) - q.head)
	q.depth.Store(n)
	if n > q.peak.Load() {
		q.peak.Store(n)
	}
	q.cond.Signal()
	return nil
}

// Pop removes the oldest task, blocking while the queue is empty. It
// returns false once the queue is closed and drained. Every successful Pop
// must be matched by a call to Done.
func (q *TaskQueue) Pop() (CopyTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head == len(q.items) && !q.closed {
		q.cond.Wait()
	}
	if q.head == len(q.items) {
		return CopyTask{}, false
	}

	task := q.items[q.head]
	q.items[q.head] = CopyTask{}
	q.head++
	q.inflight++
	q.compact()
	q.depth.Store(int64(len(q.items) - q.head))
	return task, true
}

func (q *TaskQueue) compact() {
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactThreshold && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Done marks a popped task as finished.
func (q *TaskQueue) Done() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
}

// Len returns the number of queued tasks without blocking. The value may
// be stale by the time the caller uses it.
func (q *TaskQueue) Len() int {
	return int(q.depth.Load())
}

// Peak returns the highest depth the queue has reached.
func (q *TaskQueue) Peak() int {
	return int(q.peak.Load())
}

// Idle reports whether the queue is empty and no popped task is still
// running. Both are checked under one lock, so a task moving from the queue
// to a worker is never missed.
func (q *TaskQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == len(q.items) && q.inflight == 0
}

// Close stops accepting tasks and wakes every blocked consumer. Tasks
// already queued are still handed out by Pop.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
