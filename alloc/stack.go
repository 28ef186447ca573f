package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/arenakit/internal/align"
	"github.com/joshuapare/arenakit/internal/assert"
	"github.com/joshuapare/arenakit/internal/buf"
	"github.com/joshuapare/arenakit/internal/region"
)

// StackArena is a bump allocator that can roll back. Each allocation is laid
// out as
//
//	[padding][header][data]
//	                 ↑ aligned
//
// where the header records {padding, total} and total covers all three
// parts. Free reads the header in front of the pointer and moves the cursor
// back to where that allocation began.
//
// Frees must happen in strict reverse order of allocation. Freeing anything
// but the most recent live allocation silently rewinds the cursor past live
// data, which the next Allocate will overwrite. This is a caller contract and
// is only checked when built with the allocdebug tag.
type StackArena struct {
	r      *region.Region
	offset int
	obs    Observer

	counters
	live int
}

// NewStack creates a StackArena owning capacity bytes.
func NewStack(capacity int, opts *Options) (*StackArena, error) {
	if capacity < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrCapacityTooSmall, capacity, headerSize)
	}
	r, err := region.New(capacity)
	if err != nil {
		return nil, err
	}
	return &StackArena{r: r, obs: opts.observer()}, nil
}

// Allocate pushes a new allocation of size bytes whose data address is
// aligned to alignment (MaxAlign when <= 0).
func (sa *StackArena) Allocate(size, alignment int) ([]byte, error) {
	if sa.r.Closed() {
		return nil, ErrClosed
	}
	sa.allocCalls++
	if size <= 0 {
		sa.failedCalls++
		return nil, ErrZeroSize
	}
	alignment = normalizeAlignment(alignment)

	// The data address, not the header, must be aligned.
	padding := align.Padding(sa.r.Addr(sa.offset+headerSize), alignment)
	if size > sa.r.Len()-sa.offset-padding-headerSize {
		sa.failedCalls++
		sa.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: -1, Err: ErrOutOfMemory})
		return nil, ErrOutOfMemory
	}
	total := padding + headerSize + size

	data := sa.r.Bytes()
	hdr := sa.offset + padding
	buf.PutInt(data, hdr, padding)
	buf.PutInt(data, hdr+buf.WordSize, total)

	sa.offset += total
	sa.live++

	off := hdr + headerSize
	sa.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: off, Padding: padding, Total: total})
	return sa.r.Slice(off, size), nil
}

// Alloc implements Allocator.
func (sa *StackArena) Alloc(size, alignment int) ([]byte, error) {
	return sa.Allocate(size, alignment)
}

// Free pops the allocation p, restoring the cursor to where it began.
// p must be the most recent live allocation.
func (sa *StackArena) Free(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	off, ok := sa.r.OffsetOf(p)
	if !ok || off < headerSize {
		return ErrBadPointer
	}
	data := sa.r.Bytes()
	hdr := off - headerSize
	padding := buf.Int(data, hdr)
	total := buf.Int(data, hdr+buf.WordSize)
	start := off - padding - headerSize

	// A header that places the allocation above the cursor belongs to
	// something already popped.
	if padding < 0 || total < headerSize || start < 0 || start+total > sa.offset {
		return ErrBadPointer
	}
	sa.freeCalls++

	assert.That(start+total == sa.offset,
		"stack: free of offset %d is not the top allocation (cursor %d)", off, sa.offset)

	sa.offset = start
	sa.live--
	sa.emit(Event{Op: OpFree, Size: total - padding - headerSize, Offset: off, Padding: padding, Total: total})
	return nil
}

// Reset drops every allocation.
func (sa *StackArena) Reset() {
	sa.offset = 0
	sa.live = 0
	sa.emit(Event{Op: OpReset, Offset: -1})
}

// Used returns the cursor position in bytes.
func (sa *StackArena) Used() int { return sa.offset }

// Capacity returns the size of the backing buffer.
func (sa *StackArena) Capacity() int { return sa.r.Len() }

// Offset returns the buffer offset of p, or -1 if p is not from this arena.
func (sa *StackArena) Offset(p []byte) int {
	off, ok := sa.r.OffsetOf(p)
	if !ok {
		return -1
	}
	return off
}

// Stats implements Allocator.
func (sa *StackArena) Stats() Stats {
	s := Stats{Kind: "stack", Capacity: sa.r.Len(), Used: sa.offset, Live: sa.live}
	sa.counters.fill(&s)
	return s
}

// PrintStats implements Allocator.
func (sa *StackArena) PrintStats(w io.Writer) error {
	return WriteStats(w, sa.Stats())
}

// Close releases the backing buffer.
func (sa *StackArena) Close() error {
	return sa.r.Close()
}

func (sa *StackArena) emit(ev Event) {
	if sa.obs == nil {
		return
	}
	ev.Allocator = "stack"
	sa.obs(ev)
}

var _ Allocator = (*StackArena)(nil)
