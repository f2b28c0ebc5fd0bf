package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	WalkStarted Type = iota + 1
	WalkPaused
	WalkResumed
	WalkComplete
	DirCreated
	DirFailed
	FileStarted
	FileWork
	FileCompleted
	FileFailed
	SlowOpen
)

var typeNames = [...]string{
	WalkStarted:   "WalkStarted",
	WalkPaused:    "WalkPaused",
	WalkResumed:   "WalkResumed",
	WalkComplete:  "WalkComplete",
	DirCreated:    "DirCreated",
	DirFailed:     "DirFailed",
	FileStarted:   "FileStarted",
	FileWork:      "FileWork",
	FileCompleted: "FileCompleted",
	FileFailed:    "FileFailed",
	SlowOpen:      "SlowOpen",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Verbose reports whether the event type belongs to the per-file feed that
// is only emitted in verbose mode. Failures and walker state changes are
// always emitted.
func (t Type) Verbose() bool {
	switch t {
	case DirCreated, FileStarted, FileWork, FileCompleted, SlowOpen:
		return true
	default:
		return false
	}
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string        // relative path, slash separated
	Size      int64         // file size in bytes
	Depth     int           // tree depth, root entries are 0
	Queued    int           // queue depth (WalkPaused/WalkResumed)
	Duration  time.Duration // FileCompleted: time since FileStarted; SlowOpen: open latency
	Detail    string        // SlowOpen: "input" or "output"
	Error     error
	WorkerID  int
}
