package platform

import "sync"

// BufferPool hands out fixed-size copy blocks so that a pool of thousands of
// workers does not allocate a fresh block per file.
type BufferPool struct {
	pool sync.Pool
	size int
}

// NewBufferPool creates a pool of blocks of the given size in bytes.
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return bp
}

// Get returns a block of exactly Size() bytes.
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte) //nolint:forcetypeassert // pool only holds *[]byte
}

// Put returns a block to the pool. Blocks of a foreign size are dropped.
func (bp *BufferPool) Put(b *[]byte) {
	if b == nil || len(*b) != bp.size {
		return
	}
	bp.pool.Put(b)
}

// Size returns the block size in bytes.
func (bp *BufferPool) Size() int {
	return bp.size
}

// WorkerCap returns the largest worker count the process can sustain given
// its open file limit. Every worker holds a source and a destination
// descriptor; reserved descriptors are kept back for the walker, logging and
// the runtime. Returns 0 when the limit is unknown.
func WorkerCap(reserved int) int {
	limit := MaxOpenFiles()
	if limit == 0 {
		return 0
	}
	n := (int(min(limit, 1<<20)) - reserved) / 2 //nolint:gosec // G115: capped above
	return max(n, 1)
}
