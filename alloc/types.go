package alloc

import (
	"io"

	"github.com/joshuapare/arenakit/internal/align"
	"github.com/joshuapare/arenakit/internal/assert"
	"github.com/joshuapare/arenakit/internal/buf"
)

// MaxAlign is the default alignment, used whenever a caller passes an
// alignment <= 0. It matches the alignment of C's max_align_t on 64-bit ABIs,
// so any scalar or 128-bit vector can live at an address it produces.
const MaxAlign = 16

const (
	// headerSize is the allocation header {padding, size} kept in front of
	// every StackArena and SegmentHeap allocation.
	headerSize = 2 * buf.WordSize

	// freeHeaderSize is the intrusive {capacity, next} node at the start of
	// every SegmentHeap free block.
	freeHeaderSize = 2 * buf.WordSize
)

// Allocator is the contract shared by every strategy in this package.
//
// Implementations:
//   - BumpArena: cursor only, Free is a no-op
//   - StackArena: LIFO rollback through per-allocation headers
//   - BlockPool: fixed-size blocks from a growable chunk list
//   - SegmentHeap: general purpose free list with splitting and coalescing
//
// None of the implementations are safe for concurrent use.
type Allocator interface {
	// Alloc returns size bytes whose first byte is aligned to alignment
	// (MaxAlign when alignment <= 0). Alignment must be a power of two.
	Alloc(size, alignment int) ([]byte, error)

	// Free releases a slice previously returned by Alloc. A nil slice is a no-op.
	Free(p []byte) error

	// Reset discards every live allocation at once.
	Reset()

	// Stats returns a snapshot of the allocator's utilization.
	Stats() Stats

	// PrintStats writes a human readable report of Stats to w.
	PrintStats(w io.Writer) error

	// Close releases the backing memory.
	Close() error
}

// Policy selects how SegmentHeap picks a free block.
type Policy uint8

const (
	// FirstFit takes the first block, in address order, that is large enough.
	FirstFit Policy = iota
	// BestFit takes the block that leaves the least unused space.
	BestFit
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return "unknown"
	}
}

// Options configures optional behavior shared by all allocators.
// A nil *Options is valid and selects the defaults.
type Options struct {
	// Observer receives an Event for every operation. When nil, events are
	// logged to stderr if ARENAKIT_LOG_ALLOC is set and dropped otherwise.
	Observer Observer
}

func (o *Options) observer() Observer {
	if o != nil && o.Observer != nil {
		return o.Observer
	}
	return defaultObserver()
}

// normalizeAlignment applies the MaxAlign default. A non power of two is a
// caller precondition violation and is only caught under allocdebug.
func normalizeAlignment(alignment int) int {
	if alignment <= 0 {
		return MaxAlign
	}
	assert.That(align.IsPow2(alignment), "alignment %d is not a power of two", alignment)
	return alignment
}
