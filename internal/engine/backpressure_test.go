package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackpressure_Defaults(t *testing.T) {
	t.Parallel()
	bp := NewBackpressure(BackpressureConfig{Depth: func() int { return 0 }, High: 100})
	assert.Equal(t, 100, bp.High())
	assert.Equal(t, 50, bp.Low())

	bp = NewBackpressure(BackpressureConfig{Depth: func() int { return 0 }, High: 100, Low: 500})
	assert.Equal(t, 50, bp.Low(), "low above high falls back to high/2")
}

func TestBackpressure_NoPauseAtOrBelowHigh(t *testing.T) {
	t.Parallel()
	bp := NewBackpressure(BackpressureConfig{Depth: func() int { return 100 }, High: 100})

	require.NoError(t, bp.Wait(context.Background()))
	assert.Zero(t, bp.Pauses())
	assert.False(t, bp.Paused())
}

func TestBackpressure_PausesAboveHighResumesAtLow(t *testing.T) {
	t.Parallel()

	var depth atomic.Int64
	depth.Store(101)

	var pausedAt, resumedAt atomic.Int64
	bp := NewBackpressure(BackpressureConfig{
		Depth:        func() int { return int(depth.Load()) },
		High:         100,
		PollInterval: time.Millisecond,
		OnPause:      func(d int) { pausedAt.Store(int64(d)) },
		OnResume:     func(d int) { resumedAt.Store(int64(d)) },
	})

	released := make(chan error, 1)
	go func() { released <- bp.Wait(context.Background()) }()

	require.Eventually(t, bp.Paused, time.Second, time.Millisecond)
	assert.Equal(t, int64(101), pausedAt.Load())

	// Draining below high is not enough: hysteresis holds until low.
	for _, d := range []int64{90, 75, 51} {
		depth.Store(d)
		select {
		case <-released:
			t.Fatalf("resumed at depth %d, above the low watermark", d)
		case <-time.After(10 * time.Millisecond):
		}
	}

	depth.Store(50)
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("walker not resumed at the low watermark")
	}

	assert.False(t, bp.Paused())
	assert.Equal(t, int64(1), bp.Pauses())
	assert.Equal(t, int64(50), resumedAt.Load())
	assert.LessOrEqual(t, bp.MaxResumeDepth(), 50)
	assert.Positive(t, bp.PausedFor())
}

func TestBackpressure_ContextCancel(t *testing.T) {
	t.Parallel()
	bp := NewBackpressure(BackpressureConfig{
		Depth:        func() int { return 1000 },
		High:         10,
		PollInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() { released <- bp.Wait(ctx) }()

	require.Eventually(t, bp.Paused, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-released:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Wait ignored cancellation")
	}
	assert.False(t, bp.Paused())
	assert.Zero(t, bp.MaxResumeDepth(), "a cancelled wait is not a resume")
}

// A producer that checks before every push never overshoots the high
// watermark by more than the one push made after a passing check.
func TestBackpressure_BoundsProducer(t *testing.T) {
	t.Parallel()
	q := NewTaskQueue()
	bp := NewBackpressure(BackpressureConfig{Depth: q.Len, High: 100, PollInterval: time.Millisecond})

	stop := make(chan struct{})
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if q.Len() == 0 {
				time.Sleep(100 * time.Microsecond)
				continue
			}
			if _, ok := q.Pop(); ok {
				q.Done()
			}
			time.Sleep(20 * time.Microsecond)
		}
	}()

	for i := range 2000 {
		require.NoError(t, bp.Wait(context.Background()))
		require.NoError(t, q.Push(CopyTask{RelPath: string(rune('a' + i%26))}))
		require.LessOrEqual(t, q.Len(), 101)
	}
	close(stop)
	<-consumed

	assert.LessOrEqual(t, q.Peak(), 101)
	assert.Positive(t, bp.Pauses())
	assert.LessOrEqual(t, bp.MaxResumeDepth(), 50)
}
