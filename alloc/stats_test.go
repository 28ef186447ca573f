package alloc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Derived(t *testing.T) {
	s := Stats{Capacity: 200, Used: 50, FreeBlocks: []int{10, 70, 30}}
	assert.Equal(t, 150, s.Free())
	assert.InDelta(t, 25.0, s.Utilization(), 1e-9)
	assert.Equal(t, 3, s.FreeBlockCount())
	assert.Equal(t, 70, s.LargestFreeBlock())

	assert.Zero(t, Stats{}.Utilization())
	assert.Zero(t, Stats{}.LargestFreeBlock())
}

func TestPrintStats_Heap(t *testing.T) {
	sh := newTestHeap(t, 64<<10, BestFit)
	_, err := sh.Allocate(1000, 16)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, sh.PrintStats(&out))

	report := out.String()
	assert.Contains(t, report, "heap: 1,016/65,536 bytes used")
	assert.Contains(t, report, "best-fit")
	assert.Contains(t, report, "Free blocks:       1 (largest 64,504)")
	assert.Contains(t, report, "alloc 1, free 0, failed 0")
}

func TestPrintStats_Pool(t *testing.T) {
	bp := newTestPool(t, PoolConfig{BlockSize: 64, ChunkSize: 32})
	_, err := bp.Allocate()
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, bp.PrintStats(&out))

	report := out.String()
	assert.Contains(t, report, "pool: 64/2,048 bytes used")
	assert.Contains(t, report, "Chunk size:        32 blocks")
	assert.Contains(t, report, "Free blocks:       31")
}

func TestPrintStats_Allocators(t *testing.T) {
	ba, err := NewBump(128, nil)
	require.NoError(t, err)
	defer ba.Close()
	sa, err := NewStack(128, nil)
	require.NoError(t, err)
	defer sa.Close()

	for _, a := range []Allocator{ba, sa} {
		_, err := a.Alloc(32, 16)
		require.NoError(t, err)

		var out bytes.Buffer
		require.NoError(t, a.PrintStats(&out))
		assert.Contains(t, out.String(), a.Stats().Kind+":")
		assert.Contains(t, out.String(), "Live allocations:  1")
	}
}

func TestStats_AfterClose(t *testing.T) {
	constructors := map[string]func() (Allocator, error){
		"bump":  func() (Allocator, error) { return NewBump(256, nil) },
		"stack": func() (Allocator, error) { return NewStack(256, nil) },
		"pool":  func() (Allocator, error) { return NewPool(nil, nil) },
		"heap":  func() (Allocator, error) { return NewHeap(256, BestFit, nil) },
	}
	for name, newAlloc := range constructors {
		t.Run(name, func(t *testing.T) {
			a, err := newAlloc()
			require.NoError(t, err)
			_, err = a.Alloc(16, 16)
			require.NoError(t, err)
			require.NoError(t, a.Close())

			assert.NotPanics(t, func() { a.Stats() })
			var out bytes.Buffer
			assert.NotPanics(t, func() { _ = a.PrintStats(&out) })
		})
	}
}
