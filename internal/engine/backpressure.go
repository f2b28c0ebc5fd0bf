package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// BackpressureConfig configures a Backpressure controller.
type BackpressureConfig struct {
	// Depth reports the current queue depth.
	Depth func() int
	// OnPause and OnResume, when set, are called from Wait with the depth
	// that triggered the transition.
	OnPause  func(depth int)
	OnResume func(depth int)
	High     int
	// Low defaults to High/2.
	Low          int
	PollInterval time.Duration
}

// Backpressure pauses the producer while the queue is above the high
// watermark and lets it continue once the queue has drained to the low
// watermark. Work is only ever delayed, never dropped.
type Backpressure struct {
	cfg BackpressureConfig

	paused          atomic.Bool
	pauses          atomic.Int64
	maxResumeDepth  atomic.Int64
	totalPausedNano atomic.Int64
}

// NewBackpressure creates a controller. Zero values fall back to the
// package defaults.
func NewBackpressure(cfg BackpressureConfig) *Backpressure {
	if cfg.High <= 0 {
		cfg.High = 1
	}
	if cfg.Low <= 0 || cfg.Low > cfg.High {
		cfg.Low = cfg.High / 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Backpressure{cfg: cfg}
}

// Wait returns immediately while the queue depth is at or below the high
// watermark. Above it, Wait blocks and polls the depth every PollInterval
// until it falls to the low watermark or ctx is done.
func (b *Backpressure) Wait(ctx context.Context) error {
	depth := b.cfg.Depth()
	if depth <= b.cfg.High {
		return nil
	}

	start := time.Now()
	b.paused.Store(true)
	b.pauses.Add(1)
	defer func() {
		b.paused.Store(false)
		b.totalPausedNano.Add(int64(time.Since(start)))
	}()
	if b.cfg.OnPause != nil {
		b.cfg.OnPause(depth)
	}

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for depth > b.cfg.Low {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		depth = b.cfg.Depth()
	}

	if int64(depth) > b.maxResumeDepth.Load() {
		b.maxResumeDepth.Store(int64(depth))
	}
	if b.cfg.OnResume != nil {
		b.cfg.OnResume(depth)
	}
	return nil
}

// Paused reports whether the producer is currently held in Wait.
func (b *Backpressure) Paused() bool { return b.paused.Load() }

// Pauses returns how many times the producer has been paused.
func (b *Backpressure) Pauses() int64 { return b.pauses.Load() }

// MaxResumeDepth returns the highest queue depth at which a paused producer
// was released.
func (b *Backpressure) MaxResumeDepth() int { return int(b.maxResumeDepth.Load()) }

// PausedFor returns the total time the producer has spent paused.
func (b *Backpressure) PausedFor() time.Duration {
	return time.Duration(b.totalPausedNano.Load())
}

// High returns the high watermark.
func (b *Backpressure) High() int { return b.cfg.High }

// Low returns the low watermark.
func (b *Backpressure) Low() int { return b.cfg.Low }
