package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/arenakit/internal/align"
	"github.com/joshuapare/arenakit/internal/region"
)

// BumpArena is the simplest allocator in the family: a single cursor that only
// moves forward. Allocation is O(1), nothing is stored per allocation, and
// memory is reclaimed only all at once by Reset.
//
// The padding aligns the address at the current cursor, the same address the
// returned slice starts at.
type BumpArena struct {
	r    *region.Region
	used int
	obs  Observer

	counters
	live int
}

// NewBump creates a BumpArena owning capacity bytes.
func NewBump(capacity int, opts *Options) (*BumpArena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCapacityTooSmall, capacity)
	}
	r, err := region.New(capacity)
	if err != nil {
		return nil, err
	}
	return &BumpArena{r: r, obs: opts.observer()}, nil
}

// Allocate returns size bytes aligned to alignment (MaxAlign when <= 0).
// It fails with ErrOutOfMemory, leaving the cursor untouched, when the
// padded request does not fit in the remaining space.
func (ba *BumpArena) Allocate(size, alignment int) ([]byte, error) {
	if ba.r.Closed() {
		return nil, ErrClosed
	}
	ba.allocCalls++
	if size <= 0 {
		ba.failedCalls++
		return nil, ErrZeroSize
	}
	alignment = normalizeAlignment(alignment)

	padding := align.Padding(ba.r.Addr(ba.used), alignment)
	if size > ba.r.Len()-ba.used-padding {
		ba.failedCalls++
		ba.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: -1, Err: ErrOutOfMemory})
		return nil, ErrOutOfMemory
	}

	off := ba.used + padding
	ba.used = off + size
	ba.live++

	ba.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: off, Padding: padding, Total: padding + size})
	return ba.r.Slice(off, size), nil
}

// Alloc implements Allocator.
func (ba *BumpArena) Alloc(size, alignment int) ([]byte, error) {
	return ba.Allocate(size, alignment)
}

// Free is a no-op: a bump arena cannot release individual allocations.
// It only rejects slices that do not belong to the arena.
func (ba *BumpArena) Free(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if !ba.r.Contains(p) {
		return ErrBadPointer
	}
	ba.freeCalls++
	return nil
}

// Reset rewinds the cursor to the start of the buffer. Every slice handed
// out before the reset must be considered invalid.
func (ba *BumpArena) Reset() {
	ba.used = 0
	ba.live = 0
	ba.emit(Event{Op: OpReset, Offset: -1})
}

// Used returns the cursor position in bytes.
func (ba *BumpArena) Used() int { return ba.used }

// Capacity returns the size of the backing buffer.
func (ba *BumpArena) Capacity() int { return ba.r.Len() }

// Offset returns the buffer offset of p, or -1 if p is not from this arena.
func (ba *BumpArena) Offset(p []byte) int {
	off, ok := ba.r.OffsetOf(p)
	if !ok {
		return -1
	}
	return off
}

// Stats implements Allocator.
func (ba *BumpArena) Stats() Stats {
	s := Stats{Kind: "bump", Capacity: ba.r.Len(), Used: ba.used, Live: ba.live}
	ba.counters.fill(&s)
	return s
}

// PrintStats implements Allocator.
func (ba *BumpArena) PrintStats(w io.Writer) error {
	return WriteStats(w, ba.Stats())
}

// Close releases the backing buffer.
func (ba *BumpArena) Close() error {
	return ba.r.Close()
}

func (ba *BumpArena) emit(ev Event) {
	if ba.obs == nil {
		return
	}
	ev.Allocator = "bump"
	ba.obs(ev)
}

// Compile-time interface check
var _ Allocator = (*BumpArena)(nil)
