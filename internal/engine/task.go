package engine

import "time"

// DirEntry is one entry produced by the tree walk.
type DirEntry struct {
	Path    string // source path, rooted at the walk root
	RelPath string // slash-separated path relative to the source root
	Depth   int    // 0 for entries directly under the root
	IsDir   bool
}

// CopyTask describes copying one source file to its mirrored destination.
// It is owned by the worker that dequeues it.
type CopyTask struct {
	Enqueued time.Time // stamped by TaskQueue.Push
	SrcPath  string
	RelPath  string // destination key, unique per task
	Depth    int
}
