package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks copy run statistics using lock-free atomic counters.
// It is shared by the walker, every worker and the status monitor for the
// lifetime of one run.
type Collector struct {
	startTime time.Time

	discovered  atomic.Int64
	completed   atomic.Int64
	errored     atomic.Int64
	bytesCopied atomic.Int64
	dirsCreated atomic.Int64
	dirsFailed  atomic.Int64

	// Ring buffer, written only by Tick().
	mu          sync.Mutex
	throughput  [ringSize]int64 // bytes delta per tick
	filesPerSec [ringSize]int64 // files delta per tick
	ringIdx     int
	ringCount   int // samples written, capped at ringSize
	lastBytes   int64
	lastFiles   int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	Discovered  int64
	Completed   int64
	Errored     int64
	BytesCopied int64
	DirsCreated int64
	DirsFailed  int64
	Elapsed     time.Duration
}

func (c *Collector) AddDiscovered(n int64)  { c.discovered.Add(n) }
func (c *Collector) AddCompleted(n int64)   { c.completed.Add(n) }
func (c *Collector) AddErrored(n int64)     { c.errored.Add(n) }
func (c *Collector) AddBytesCopied(n int64) { c.bytesCopied.Add(n) }
func (c *Collector) AddDirsCreated(n int64) { c.dirsCreated.Add(n) }
func (c *Collector) AddDirsFailed(n int64)  { c.dirsFailed.Add(n) }

// Snapshot returns a point-in-time read of all counters.
//
// Completed and errored are loaded before discovered: discovered is always
// incremented before a task becomes visible to workers, so this order keeps
// completed+errored <= discovered in every snapshot.
func (c *Collector) Snapshot() Snapshot {
	errored := c.errored.Load()
	completed := c.completed.Load()
	return Snapshot{
		Errored:     errored,
		Completed:   completed,
		Discovered:  c.discovered.Load(),
		BytesCopied: c.bytesCopied.Load(),
		DirsCreated: c.dirsCreated.Load(),
		DirsFailed:  c.dirsFailed.Load(),
		Elapsed:     c.Elapsed(),
	}
}

// Tick snapshots byte/file deltas into the ring buffer. Called once per
// second by the status monitor.
func (c *Collector) Tick() {
	currentBytes := c.bytesCopied.Load()
	currentFiles := c.completed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	bytesDelta := currentBytes - c.lastBytes
	filesDelta := currentFiles - c.lastFiles
	c.lastBytes = currentBytes
	c.lastFiles = currentFiles

	c.throughput[c.ringIdx] = bytesDelta
	c.filesPerSec[c.ringIdx] = filesDelta
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.throughput[:], seconds)
}

// RollingFilesPerSec returns average files/sec over the last n samples.
func (c *Collector) RollingFilesPerSec(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollingAvg(c.filesPerSec[:], seconds)
}

func (c *Collector) rollingAvg(buf []int64, n int) float64 {
	count := min(n, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += buf[idx]
	}
	return float64(sum) / float64(count)
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"discovered=%d completed=%d errored=%d bytes=%d dirs=%d dirs_failed=%d",
		s.Discovered, s.Completed, s.Errored,
		s.BytesCopied, s.DirsCreated, s.DirsFailed,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
