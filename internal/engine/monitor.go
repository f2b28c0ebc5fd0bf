package engine

import (
	"fmt"
	"time"

	"github.com/bamsammich/pcopy/internal/stats"
)

// rateWindow is how many one-second ticks the rolling rates average over.
const rateWindow = 5

// Status is one sample of a running copy.
type Status struct {
	Elapsed     time.Duration
	MeanWait    time.Duration
	MeanRun     time.Duration
	Completed   int64
	Discovered  int64
	Errored     int64
	BytesCopied int64
	BytesPerSec float64
	FilesPerSec float64
	Queued      int
	Busy        int
	Workers     int
	Paused      bool
}

// Utilization returns the busy fraction of the pool as a percentage.
func (s Status) Utilization() float64 {
	if s.Workers == 0 {
		return 0
	}
	return float64(s.Busy) * 100 / float64(s.Workers)
}

// Line renders the status in the fixed single-line layout used for the
// terminal title.
func (s Status) Line() string {
	return fmt.Sprintf(
		"%d sec | DONE;TOTAL;QUEUED;ERRORS: %d;%d;%d;%d | POOL Load: %f%% | Averages: WAIT;RUN (sec): %f;%f",
		int64(s.Elapsed/time.Second),
		s.Completed, s.Discovered, s.Queued, s.Errored,
		s.Utilization(),
		s.MeanWait.Seconds(), s.MeanRun.Seconds(),
	)
}

// StatusSink receives monitor samples.
type StatusSink interface {
	// Update is called once per interval while the run is active.
	Update(s Status)
	// Finish is called once with the final sample.
	Finish(s Status)
}

// poolSampler is the part of WorkerPool the monitor reads.
type poolSampler interface {
	Statuses() []StatusSample
	QueueLen() int
	Idle() bool
}

// Monitor samples the pool and counters on a fixed interval and publishes a
// Status. It only reads shared state.
type Monitor struct {
	pool       poolSampler
	stats      *stats.Collector
	bp         *Backpressure
	walkerDone <-chan struct{}
	sink       StatusSink
	interval   time.Duration
	lastTick   time.Time
}

// NewMonitor creates a monitor. sink and bp may be nil.
func NewMonitor(
	pool poolSampler,
	collector *stats.Collector,
	bp *Backpressure,
	walkerDone <-chan struct{},
	interval time.Duration,
	sink StatusSink,
) *Monitor {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	return &Monitor{
		pool:       pool,
		stats:      collector,
		bp:         bp,
		walkerDone: walkerDone,
		sink:       sink,
		interval:   interval,
	}
}

// Run samples until the walker has finished and the pool has nothing queued
// or running, then publishes the final sample and returns it.
func (m *Monitor) Run() Status {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.lastTick = time.Now()

	for {
		// Decide before sampling so the last published sample already
		// reflects the finished state.
		finished := m.finished()
		s := m.Sample()
		if finished {
			if m.sink != nil {
				m.sink.Finish(s)
			}
			return s
		}
		if m.sink != nil {
			m.sink.Update(s)
		}
		<-ticker.C
		if time.Since(m.lastTick) >= time.Second {
			m.stats.Tick()
			m.lastTick = time.Now()
		}
	}
}

func (m *Monitor) finished() bool {
	select {
	case <-m.walkerDone:
		return m.pool.Idle()
	default:
		return false
	}
}

// Sample takes one Status reading.
func (m *Monitor) Sample() Status {
	statuses := m.pool.Statuses()
	var wait, run time.Duration
	busy := 0
	for _, st := range statuses {
		wait += st.Wait
		run += st.Run
		if st.Busy {
			busy++
		}
	}
	if n := len(statuses); n > 0 {
		wait /= time.Duration(n)
		run /= time.Duration(n)
	}

	snap := m.stats.Snapshot()
	s := Status{
		Elapsed:     snap.Elapsed,
		MeanWait:    wait,
		MeanRun:     run,
		Completed:   snap.Completed,
		Discovered:  snap.Discovered,
		Errored:     snap.Errored,
		BytesCopied: snap.BytesCopied,
		BytesPerSec: m.stats.RollingSpeed(rateWindow),
		FilesPerSec: m.stats.RollingFilesPerSec(rateWindow),
		Queued:      m.pool.QueueLen(),
		Busy:        busy,
		Workers:     len(statuses),
	}
	if m.bp != nil {
		s.Paused = m.bp.Paused()
	}
	return s
}
