package engine

import (
	"os"
	"sync"
)

// inProgress holds the destinations of every running copy in the process.
var inProgress = &partials{} //nolint:gochecknoglobals // read by RemovePartials on forced exit

// RemovePartials deletes every destination file a worker is still writing
// and returns how many were removed. It is meant for a forced exit, when
// in-flight copies will never finish.
func RemovePartials() int {
	return inProgress.removeAll()
}

// partials tracks destination files that are open for writing. A file is
// registered before its first byte is written and released once it has
// been closed successfully, so whatever remains is a partial copy.
type partials struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func (p *partials) add(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paths == nil {
		p.paths = make(map[string]struct{})
	}
	p.paths[path] = struct{}{}
}

func (p *partials) release(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paths, path)
}

// removeAll deletes every registered file and returns how many there were.
func (p *partials) removeAll() int {
	p.mu.Lock()
	paths := make([]string, 0, len(p.paths))
	for path := range p.paths {
		paths = append(paths, path)
	}
	p.paths = nil
	p.mu.Unlock()

	for _, path := range paths {
		_ = os.Remove(path)
	}
	return len(paths)
}
