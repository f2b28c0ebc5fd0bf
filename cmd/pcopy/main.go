package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bamsammich/pcopy/internal/engine"
	"github.com/bamsammich/pcopy/internal/event"
	"github.com/bamsammich/pcopy/internal/ui"
)

var version = "dev"

const usageLine = "pcopy <source> <destination> [<flag letters>]"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	stderr = newLockedWriter(stderr)
	rootCmd := newRootCmd(stdout, stderr)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		workers        int
		workersPerCPU  int
		queuePerCPU    int
		highWatermark  int
		blockSize      int64
		bwLimit        int64
		statusInterval time.Duration
		logFile        string
		verbose        bool
		quiet          bool
		showVersion    bool
	)

	rootCmd := &cobra.Command{
		Use:   usageLine,
		Short: "Copy a directory tree with a large pool of parallel file workers",
		Long: `pcopy mirrors a source directory into a destination directory. One walker
discovers files and recreates folders while a pool of workers copies file
contents. The optional third argument is a string of flag letters:

  V  verbose, show every copy and mkdir`,
		Args: func(_ *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if len(args) < 2 {
				ui.NewConsole(stderr, !isTerminal(stderr)).UsageHint(usageLine, engine.OptionLetters)
				return &exitError{code: 1}
			}
			if len(args) > 3 {
				return fmt.Errorf("expected at most 3 arguments, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(stdout, "pcopy %s\n", version)
				return nil
			}

			if err := checkPositive("block-size", blockSize); err != nil {
				return err
			}

			opts := engine.Options{}
			if len(args) > 2 {
				opts = engine.ParseOptions(args[2])
			}
			opts.Verbose = opts.Verbose || verbose

			closeLog, err := setupLogging(stderr, logFile, opts.Verbose, quiet)
			if err != nil {
				return err
			}
			defer closeLog()

			return copyTree(cmd.Context(), runParams{
				stdout: stdout,
				stderr: stderr,
				quiet:  quiet,
				log:    logFile != "",
				cfg: engine.Config{
					Src:            engine.NormalizeRoot(args[0]),
					Dst:            engine.NormalizeRoot(args[1]),
					Options:        opts,
					Workers:        workers,
					WorkersPerCPU:  workersPerCPU,
					QueuePerCPU:    queuePerCPU,
					HighWatermark:  highWatermark,
					BlockSize:      int(blockSize),
					BWLimit:        bwLimit,
					StatusInterval: statusInterval,
				},
			})
		},
	}

	flags := rootCmd.Flags()
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	flags.IntVarP(&workers, "workers", "n", 0,
		"number of copy workers (default: workers-per-cpu x NumCPU, capped by the open file limit)")
	flags.IntVar(&workersPerCPU, "workers-per-cpu", engine.DefaultWorkersPerCPU, "copy workers per CPU")
	flags.IntVar(&queuePerCPU, "queue-per-cpu", engine.DefaultQueuePerCPU, "queued files per CPU before the walker pauses")
	flags.IntVar(&highWatermark, "high-watermark", 0, "queue depth that pauses the walker (default: queue-per-cpu x NumCPU)")
	flags.Var(newSizeValue(engine.DefaultBlockSize, &blockSize), "block-size", "copy block size (e.g. 64K, 1M)")
	flags.Var(newSizeValue(0, &bwLimit), "bwlimit", "bandwidth limit in bytes/sec (e.g. 100M, 1G)")
	flags.DurationVar(&statusInterval, "status-interval", engine.DefaultStatusInterval, "status refresh interval")
	flags.StringVar(&logFile, "log", "", "write structured JSON log to FILE")
	flags.BoolVarP(&verbose, "verbose", "v", false, "show every copy and mkdir (same as flag letter V)")
	flags.BoolVarP(&quiet, "quiet", "q", false, "print nothing but errors")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

// setupLogging installs the default slog logger. Every record carries the
// run id. The returned func closes the JSON log file, if any.
func setupLogging(stderr io.Writer, logFile string, verbose, quiet bool) (func(), error) {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}

	var handler slog.Handler = slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	closeLog := func() {}
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closeLog = func() { _ = lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
	}

	slog.SetDefault(slog.New(handler).With("run", uuid.NewString()))
	return closeLog, nil
}

type runParams struct {
	stdout io.Writer
	stderr io.Writer
	cfg    engine.Config
	quiet  bool
	log    bool
}

func copyTree(parent context.Context, p runParams) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go forceExitOnSecondSignal(ctx, done)

	noColor := !isTerminal(p.stdout)
	console := ui.NewConsole(p.stdout, noColor)
	if !p.quiet {
		console.Start(p.cfg.Src, p.cfg.Dst)
	}

	events := make(chan event.Event, 256)
	presenterEvents := (<-chan event.Event)(events)
	if p.log {
		presenterEvents = logEvents(events)
	}
	presenter := ui.NewPresenter(ui.Config{Writer: p.stdout, Quiet: p.quiet, NoColor: noColor})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	cfg := p.cfg
	cfg.Events = events
	switch {
	case p.quiet:
	case isTerminal(p.stderr):
		cfg.Status = ui.NewTitleSink(p.stderr)
	default:
		cfg.Status = ui.NewProgressSink(p.stderr, ui.DefaultProgressInterval)
	}

	result := engine.Run(ctx, cfg)
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		slog.Warn("presenter failed", "error", presenterErr)
	}

	slog.Info("copy finished",
		"discovered", result.Stats.Discovered,
		"completed", result.Stats.Completed,
		"errored", result.Stats.Errored,
		"bytes", result.Stats.BytesCopied,
		"dirs_failed", result.Stats.DirsFailed,
		"peak_queue", result.PeakQueue,
		"pauses", result.Pauses,
		"elapsed", result.Stats.Elapsed,
	)

	if result.Err != nil && !errors.Is(result.Err, context.Canceled) {
		slog.Error("copy stopped", "error", result.Err)
		ui.NewConsole(p.stderr, !isTerminal(p.stderr)).Fatal(result.Err)
		return &exitError{code: 2}
	}

	if !p.quiet {
		if err := ui.RenderSummary(p.stdout, result); err != nil {
			slog.Warn("summary failed", "error", err)
		}
	}
	if result.Err != nil {
		slog.Warn("copy interrupted; files already queued were finished")
		return &exitError{code: 130}
	}
	if !p.quiet {
		console.Farewell()
	}
	return nil
}

// forceExitOnSecondSignal waits for the first signal to cancel ctx, then
// exits at once on the next one, removing partially written files.
func forceExitOnSecondSignal(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
	case <-done:
		return
	}

	again := make(chan os.Signal, 1)
	signal.Notify(again, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(again)

	select {
	case <-again:
		n := engine.RemovePartials()
		slog.Warn("forced exit", "partial_files_removed", n)
		os.Exit(130)
	case <-done:
	}
}

// logEvents writes every event as a structured record before forwarding
// it to the presenter.
func logEvents(in <-chan event.Event) <-chan event.Event {
	out := make(chan event.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			attrs := []slog.Attr{
				slog.String("type", ev.Type.String()),
				slog.String("path", ev.Path),
			}
			if ev.Size > 0 {
				attrs = append(attrs, slog.Int64("size", ev.Size))
			}
			if ev.Duration > 0 {
				attrs = append(attrs, slog.Duration("duration", ev.Duration))
			}
			if ev.Queued > 0 {
				attrs = append(attrs, slog.Int("queued", ev.Queued))
			}
			level := slog.LevelDebug
			if ev.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs,
					slog.String("error", ev.Error.Error()),
					slog.Int("errno", engine.Errno(ev.Error)),
				)
			}
			slog.LogAttrs(context.Background(), level, "pcopy.event", attrs...)
			out <- ev
		}
	}()
	return out
}

func isTerminal(w io.Writer) bool {
	if lw, ok := w.(*lockedWriter); ok {
		w = lw.w
	}
	f, ok := w.(*os.File)
	return ok && ui.IsTTY(f.Fd())
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
