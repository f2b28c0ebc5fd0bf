package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bamsammich/pcopy/internal/event"
	"github.com/bamsammich/pcopy/internal/platform"
	"github.com/bamsammich/pcopy/internal/stats"
)

// Defaults for Config fields left at zero.
const (
	DefaultWorkersPerCPU     = 100
	DefaultQueuePerCPU       = 250
	DefaultBlockSize         = 256 * 1024
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultStatusInterval    = 500 * time.Millisecond
	DefaultSlowOpenThreshold = 10 * time.Second

	// reservedFDs are kept back from the open file limit when sizing the
	// pool from RLIMIT_NOFILE.
	reservedFDs = 64
)

// Options are the user-facing switches of a run.
type Options struct {
	Verbose bool
}

// ParseOptions reads the single-letter flag string given after the two
// roots. Letters are matched anywhere in the string; unknown letters are
// ignored.
func ParseOptions(flags string) Options {
	return Options{
		Verbose: strings.ContainsRune(flags, 'V'),
	}
}

// OptionLetter documents one recognised flag letter.
type OptionLetter struct {
	Letter rune
	Help   string
}

// OptionLetters describes every recognised flag letter, for usage output.
var OptionLetters = []OptionLetter{ //nolint:gochecknoglobals // static usage table
	{'V', "Verbose (show every copy / mkdir)"},
}

// NormalizeRoot converts backslashes to forward slashes and strips
// trailing slashes. The filesystem root stays "/".
func NormalizeRoot(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && strings.HasPrefix(p, "/") {
		return "/"
	}
	return trimmed
}

// Config describes a copy run.
type Config struct {
	Stats *stats.Collector // created when nil
	// Status receives live samples; nil disables them.
	Status StatusSink
	// Events receives progress events; nil disables them. The caller
	// must drain it until Run returns.
	Events chan<- event.Event
	Src    string
	Dst    string

	Options Options

	// Workers fixes the pool size. When zero it is WorkersPerCPU times
	// the CPU count, capped at MaxWorkers.
	Workers       int
	WorkersPerCPU int
	// MaxWorkers defaults to what the open file limit allows.
	MaxWorkers int

	// HighWatermark defaults to QueuePerCPU times the CPU count.
	HighWatermark int
	// LowWatermark defaults to HighWatermark/2.
	LowWatermark int
	QueuePerCPU  int

	BlockSize int
	// BWLimit caps aggregate copy throughput in bytes/sec; 0 is unlimited.
	BWLimit int64

	PollInterval      time.Duration
	StatusInterval    time.Duration
	SlowOpenThreshold time.Duration
}

// Result is the outcome of a copy run.
type Result struct {
	Err            error
	Stats          stats.Snapshot
	Final          Status
	Workers        int
	HighWatermark  int
	LowWatermark   int
	PeakQueue      int
	Pauses         int64
	MaxResumeDepth int
	PausedFor      time.Duration
}

// WithDefaults returns cfg with every zero tunable filled in.
func (cfg Config) WithDefaults() Config {
	cpus := runtime.NumCPU()

	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	if cfg.WorkersPerCPU <= 0 {
		cfg.WorkersPerCPU = DefaultWorkersPerCPU
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = platform.WorkerCap(reservedFDs)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = cfg.WorkersPerCPU * cpus
		if cfg.MaxWorkers > 0 {
			cfg.Workers = min(cfg.Workers, cfg.MaxWorkers)
		}
		cfg.Workers = max(cfg.Workers, 1)
	}
	if cfg.QueuePerCPU <= 0 {
		cfg.QueuePerCPU = DefaultQueuePerCPU
	}
	if cfg.HighWatermark <= 0 {
		cfg.HighWatermark = cfg.QueuePerCPU * cpus
	}
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.HighWatermark {
		cfg.LowWatermark = cfg.HighWatermark / 2
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if cfg.SlowOpenThreshold <= 0 {
		cfg.SlowOpenThreshold = DefaultSlowOpenThreshold
	}
	return cfg
}

// ErrDestinationInsideSource is returned by Run when the destination is the
// source or lies somewhere beneath it.
var ErrDestinationInsideSource = errors.New("destination is inside the source")

// checkOverlap refuses a destination that is src itself, which would
// truncate every file before reading it, or a descendant of src, which the
// walker would copy into itself.
func checkOverlap(src, dst string) error {
	s, d := resolvePath(src), resolvePath(dst)
	rel, err := filepath.Rel(s, d)
	if err != nil {
		return nil //nolint:nilerr // unrelated roots, e.g. different volumes
	}
	up := rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
	if !up {
		return fmt.Errorf("%w: %s is under %s", ErrDestinationInsideSource, dst, src)
	}
	return nil
}

// resolvePath returns p as an absolute path with symlinks resolved. A
// destination may not exist yet, so only its existing ancestors are
// resolved.
func resolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	dir, rest := abs, ""
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

// Run copies cfg.Src into cfg.Dst, blocking until the walk has finished
// and every queued file has been copied or has failed. Result.Err is set
// only for failures that stop the walk; per-file failures are counted in
// Result.Stats.Errored.
func Run(ctx context.Context, cfg Config) Result {
	cfg = cfg.WithDefaults()

	srcInfo, err := os.Stat(cfg.Src)
	if err != nil {
		return Result{Err: fmt.Errorf("source: %w", err)}
	}
	if !srcInfo.IsDir() {
		return Result{Err: fmt.Errorf("source %s is not a directory", cfg.Src)}
	}
	if err := checkOverlap(cfg.Src, cfg.Dst); err != nil {
		return Result{Err: err}
	}
	if err := os.MkdirAll(cfg.Dst, 0o755); err != nil {
		return Result{Err: fmt.Errorf("create destination: %w", err)}
	}

	events := emitter{ch: cfg.Events, verbose: cfg.Options.Verbose}
	queue := NewTaskQueue()

	var limiter *rate.Limiter
	if cfg.BWLimit > 0 {
		limiter = NewBWLimiter(cfg.BWLimit, cfg.BlockSize)
	}

	pool := NewWorkerPool(WorkerConfig{
		Stats:             cfg.Stats,
		Limiter:           limiter,
		Events:            cfg.Events,
		DstRoot:           cfg.Dst,
		NumWorkers:        cfg.Workers,
		BlockSize:         cfg.BlockSize,
		SlowOpenThreshold: cfg.SlowOpenThreshold,
		Verbose:           cfg.Options.Verbose,
	}, queue)
	defer pool.Close()

	bp := NewBackpressure(BackpressureConfig{
		Depth:        queue.Len,
		High:         cfg.HighWatermark,
		Low:          cfg.LowWatermark,
		PollInterval: cfg.PollInterval,
		OnPause: func(depth int) {
			slog.Debug("walker paused", "queued", depth, "high", cfg.HighWatermark)
			events.emit(event.Event{Type: event.WalkPaused, Queued: depth})
		},
		OnResume: func(depth int) {
			slog.Debug("walker resumed", "queued", depth, "low", cfg.LowWatermark)
			events.emit(event.Event{Type: event.WalkResumed, Queued: depth})
		},
	})

	walker := NewWalker(WalkerConfig{
		Stats:   cfg.Stats,
		Events:  cfg.Events,
		SrcRoot: cfg.Src,
		DstRoot: cfg.Dst,
		Verbose: cfg.Options.Verbose,
	}, queue, bp)

	slog.Debug("starting copy",
		"src", cfg.Src,
		"dst", cfg.Dst,
		"workers", cfg.Workers,
		"high_watermark", cfg.HighWatermark,
		"low_watermark", cfg.LowWatermark,
		"block_size", cfg.BlockSize,
	)

	var g errgroup.Group
	g.Go(func() error {
		return walker.Walk(ctx)
	})

	monitor := NewMonitor(pool, cfg.Stats, bp, walker.Done(), cfg.StatusInterval, cfg.Status)
	final := monitor.Run()
	walkErr := g.Wait()
	pool.Close()

	return Result{
		Err:            walkErr,
		Stats:          cfg.Stats.Snapshot(),
		Final:          final,
		Workers:        cfg.Workers,
		HighWatermark:  bp.High(),
		LowWatermark:   bp.Low(),
		PeakQueue:      queue.Peak(),
		Pauses:         bp.Pauses(),
		MaxResumeDepth: bp.MaxResumeDepth(),
		PausedFor:      bp.PausedFor(),
	}
}
