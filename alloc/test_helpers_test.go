package alloc

import (
	"slices"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/internal/buf"
)

// ============================================================================
// Construction Utilities
// ============================================================================

func newTestHeap(t testing.TB, capacity int, policy Policy) *SegmentHeap {
	t.Helper()

	sh, err := NewHeap(capacity, policy, nil)
	require.NoError(t, err, "NewHeap(%d, %s)", capacity, policy)
	t.Cleanup(func() { sh.Close() })
	return sh
}

func newTestPool(t testing.TB, cfg PoolConfig) *BlockPool {
	t.Helper()

	bp, err := NewPool(&cfg, nil)
	require.NoError(t, err, "NewPool(%+v)", cfg)
	t.Cleanup(func() { bp.Close() })
	return bp
}

func addrOf(p []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p)))
}

func requireAligned(t testing.TB, p []byte, alignment int) {
	t.Helper()
	require.Zero(t, addrOf(p)%uintptr(alignment), "address 0x%x not aligned to %d", addrOf(p), alignment)
}

// fill writes a recognizable pattern so overlapping allocations show up as
// corrupted contents.
func fill(p []byte, tag byte) {
	for i := range p {
		p[i] = tag
	}
}

func requireFilled(t testing.TB, p []byte, tag byte) {
	t.Helper()
	for i, b := range p {
		if b != tag {
			require.FailNow(t, "allocation contents overwritten", "byte %d is 0x%02x, want 0x%02x", i, b, tag)
		}
	}
}

// ============================================================================
// Heap Invariants
// ============================================================================

type span struct {
	start, end int
	free       bool
}

// heapSpans returns the free blocks and the live allocations as byte ranges.
func heapSpans(t testing.TB, sh *SegmentHeap, live [][]byte) []span {
	t.Helper()

	var spans []span
	sh.walkFree(func(off, capacity int) bool {
		spans = append(spans, span{start: off, end: off + freeHeaderSize + capacity, free: true})
		return true
	})

	data := sh.r.Bytes()
	for _, p := range live {
		off := sh.Offset(p)
		require.GreaterOrEqual(t, off, headerSize, "live slice not in heap")
		padding := buf.Int(data, off-headerSize)
		size := buf.Int(data, off-headerSize+buf.WordSize)
		require.GreaterOrEqual(t, size, len(p), "header size smaller than the slice at %d", off)
		start := off - headerSize - padding
		spans = append(spans, span{start: start, end: off + size})
	}
	return spans
}

// assertHeapInvariants checks, for the free list and the given live slices:
//   - capacity conservation: free spans plus live spans cover the buffer exactly
//   - the free list is in ascending address order
//   - no two free blocks are adjacent
//   - no two spans overlap
func assertHeapInvariants(t testing.TB, sh *SegmentHeap, live [][]byte) {
	t.Helper()

	var free []span
	sh.walkFree(func(off, capacity int) bool {
		free = append(free, span{start: off, end: off + freeHeaderSize + capacity, free: true})
		return true
	})
	for i := 1; i < len(free); i++ {
		require.Less(t, free[i-1].start, free[i].start, "free list out of order at block %d", i)
		require.Less(t, free[i-1].end, free[i].start, "free blocks %d and %d adjacent or overlapping", i-1, i)
	}

	spans := heapSpans(t, sh, live)
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })

	total := 0
	for i, s := range spans {
		require.Less(t, s.start, s.end, "empty span at %d", s.start)
		total += s.end - s.start
		if i > 0 {
			require.LessOrEqual(t, spans[i-1].end, s.start, "span at %d overlaps span at %d", s.start, spans[i-1].start)
		}
	}
	require.Equal(t, sh.Capacity(), total, "capacity not conserved")

	liveTotal := 0
	for _, s := range spans {
		if !s.free {
			liveTotal += s.end - s.start
		}
	}
	require.Equal(t, liveTotal, sh.Stats().Used, "Used disagrees with live spans")
}
