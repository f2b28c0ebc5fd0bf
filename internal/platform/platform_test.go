package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPoolSize(t *testing.T) {
	bp := NewBufferPool(256 * 1024)
	assert.Equal(t, 256*1024, bp.Size())

	b := bp.Get()
	require.NotNil(t, b)
	assert.Len(t, *b, 256*1024)
	bp.Put(b)

	again := bp.Get()
	assert.Len(t, *again, 256*1024)
}

func TestBufferPoolDropsForeignBlocks(t *testing.T) {
	bp := NewBufferPool(16)
	small := make([]byte, 8)
	bp.Put(&small)
	bp.Put(nil)

	for range 4 {
		b := bp.Get()
		assert.Len(t, *b, 16)
	}
}

func TestMaxOpenFiles(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		assert.Zero(t, MaxOpenFiles())
		return
	}
	assert.Positive(t, MaxOpenFiles())
}

func TestWorkerCap(t *testing.T) {
	limit := MaxOpenFiles()
	if limit == 0 {
		assert.Zero(t, WorkerCap(64))
		return
	}
	n := WorkerCap(64)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, uint64(n*2), max(limit, 2))
}

func TestAdviseSequential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	AdviseSequential(f) // must not panic or disturb the descriptor

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
}
