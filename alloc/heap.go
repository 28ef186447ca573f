package alloc

import (
	"fmt"
	"io"

	"github.com/joshuapare/arenakit/internal/align"
	"github.com/joshuapare/arenakit/internal/assert"
	"github.com/joshuapare/arenakit/internal/buf"
	"github.com/joshuapare/arenakit/internal/region"
)

// nilOff terminates the free list. It is stored as an all-ones word.
const nilOff = -1

// SegmentHeap is a general purpose allocator over a single fixed buffer.
//
// Free space is tracked by an intrusive singly linked list kept in ascending
// address order. Each free block starts with a {capacity, next} node, where
// capacity excludes the node itself:
//
//	[capacity][next][ ...capacity bytes... ]
//
// An allocation carved from a free block is laid out as
//
//	[padding][padding|size][data]
//	                       ↑ aligned
//
// Allocation searches the list with the configured Policy and splits the
// block when the leftover is big enough to stand on its own. Free rebuilds the
// block from the header and merges it with the free neighbour on each side,
// so two free blocks are never adjacent.
//
// Invariant (checked by the tests after every operation):
//
//	Σ(free.capacity + 16) + Σ(live.total) == capacity
type SegmentHeap struct {
	r      *region.Region
	policy Policy
	head   int // offset of the lowest free block
	used   int // bytes spanned by live allocations
	obs    Observer

	counters
	live         int
	splits       int
	coalesceFwd  int
	coalesceBack int
}

// fit is a candidate block found by the search.
type fit struct {
	block   int
	prev    int // predecessor in the free list, nilOff if block is the head
	padding int
	total   int // padding + header + size
}

// NewHeap creates a SegmentHeap owning capacity bytes, initially one free
// block spanning the whole buffer.
func NewHeap(capacity int, policy Policy, opts *Options) (*SegmentHeap, error) {
	if capacity < freeHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrCapacityTooSmall, capacity, freeHeaderSize)
	}
	if policy != FirstFit && policy != BestFit {
		return nil, fmt.Errorf("%w: unknown policy %d", ErrBadConfig, policy)
	}
	r, err := region.New(capacity)
	if err != nil {
		return nil, err
	}
	sh := &SegmentHeap{r: r, policy: policy, obs: opts.observer()}
	sh.reset()
	return sh, nil
}

// Allocate returns size bytes whose address is aligned to alignment
// (MaxAlign when <= 0). ErrOutOfMemory leaves the heap untouched.
func (sh *SegmentHeap) Allocate(size, alignment int) ([]byte, error) {
	if sh.r.Closed() {
		return nil, ErrClosed
	}
	sh.allocCalls++
	if size <= 0 {
		sh.failedCalls++
		return nil, ErrZeroSize
	}
	alignment = normalizeAlignment(alignment)

	var (
		f  fit
		ok bool
	)
	if size <= sh.r.Len() {
		if sh.policy == BestFit {
			f, ok = sh.findBest(size, alignment)
		} else {
			f, ok = sh.findFirst(size, alignment)
		}
	}
	if !ok {
		sh.failedCalls++
		sh.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: -1, Err: ErrOutOfMemory})
		return nil, ErrOutOfMemory
	}

	data := sh.r.Bytes()
	span := sh.blockCap(f.block) + freeHeaderSize
	next := sh.blockNext(f.block)
	remaining := span - f.total
	threshold := max(alignment, freeHeaderSize)

	consumed := span
	split := remaining >= freeHeaderSize+threshold
	if split {
		// The tail keeps everything past the allocation, node included.
		tail := f.block + f.total
		sh.putBlock(tail, remaining-freeHeaderSize, next)
		sh.link(f.prev, tail)
		consumed = f.total
		sh.splits++
	} else {
		sh.link(f.prev, next)
	}

	// A consumed block's slack is recorded as part of the allocation so
	// Free gives all of it back.
	recorded := consumed - f.padding - headerSize
	hdr := f.block + f.padding
	buf.PutInt(data, hdr, f.padding)
	buf.PutInt(data, hdr+buf.WordSize, recorded)

	sh.used += consumed
	sh.live++

	off := hdr + headerSize
	sh.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: off, Padding: f.padding, Total: consumed, Split: split})
	return sh.r.Slice(off, size), nil
}

// Alloc implements Allocator.
func (sh *SegmentHeap) Alloc(size, alignment int) ([]byte, error) {
	return sh.Allocate(size, alignment)
}

// Free returns p to the free list, merging it with an adjacent free block on
// either side. Free(nil) is a no-op. A slice that does not point into the
// heap's buffer is rejected with ErrBadPointer. Double frees panic when built
// with -tags allocdebug and are otherwise not detected, nor are slices not
// obtained from Allocate.
func (sh *SegmentHeap) Free(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	off, ok := sh.r.OffsetOf(p)
	if !ok || off < headerSize {
		return ErrBadPointer
	}

	data := sh.r.Bytes()
	hdr := off - headerSize
	padding := buf.Int(data, hdr)
	size := buf.Int(data, hdr+buf.WordSize)
	block := hdr - padding
	if padding < 0 || size <= 0 || block < 0 || size > sh.r.Len()-off {
		return ErrBadPointer
	}
	sh.freeCalls++

	total := padding + headerSize + size
	capacity := total - freeHeaderSize

	prev, cur := nilOff, sh.head
	for cur != nilOff && cur < block {
		prev, cur = cur, sh.blockNext(cur)
	}
	assert.That(cur != block, "heap: double free of block at %d", block)
	assert.That(prev == nilOff || prev+freeHeaderSize+sh.blockCap(prev) <= block,
		"heap: double free of block at %d inside free block at %d", block, prev)

	// Forward: absorb the free block that starts where this one ends.
	next := cur
	forward := cur != nilOff && block+total == cur
	if forward {
		capacity += freeHeaderSize + sh.blockCap(cur)
		next = sh.blockNext(cur)
		sh.coalesceFwd++
	}

	// Backward: grow the predecessor if it ends where this block starts.
	backward := prev != nilOff && prev+freeHeaderSize+sh.blockCap(prev) == block
	if backward {
		sh.putBlock(prev, sh.blockCap(prev)+freeHeaderSize+capacity, next)
		sh.coalesceBack++
	} else {
		sh.putBlock(block, capacity, next)
		sh.link(prev, block)
	}

	sh.used -= total
	sh.live--

	sh.emit(Event{Op: OpFree, Size: size, Offset: off, Padding: padding, Total: total, Forward: forward, Backward: backward})
	return nil
}

// Reset restores the single free block spanning the buffer.
func (sh *SegmentHeap) Reset() {
	if sh.r.Closed() {
		return
	}
	sh.reset()
	sh.emit(Event{Op: OpReset, Offset: -1})
}

func (sh *SegmentHeap) reset() {
	sh.head = 0
	sh.putBlock(0, sh.r.Len()-freeHeaderSize, nilOff)
	sh.used = 0
	sh.live = 0
}

// Policy returns the search policy fixed at construction.
func (sh *SegmentHeap) Policy() Policy { return sh.policy }

// Capacity returns the size of the backing buffer.
func (sh *SegmentHeap) Capacity() int { return sh.r.Len() }

// Offset returns the buffer offset of p, or -1 if p is not from this heap.
func (sh *SegmentHeap) Offset(p []byte) int {
	off, ok := sh.r.OffsetOf(p)
	if !ok {
		return -1
	}
	return off
}

// Stats implements Allocator. FreeBlocks is collected by walking the free list.
func (sh *SegmentHeap) Stats() Stats {
	s := Stats{
		Kind:             "heap",
		Capacity:         sh.r.Len(),
		Used:             sh.used,
		Live:             sh.live,
		Policy:           sh.policy.String(),
		SplitCount:       sh.splits,
		CoalesceForward:  sh.coalesceFwd,
		CoalesceBackward: sh.coalesceBack,
	}
	sh.walkFree(func(_, capacity int) bool {
		s.FreeBlocks = append(s.FreeBlocks, capacity)
		return true
	})
	sh.counters.fill(&s)
	return s
}

// PrintStats implements Allocator.
func (sh *SegmentHeap) PrintStats(w io.Writer) error {
	return WriteStats(w, sh.Stats())
}

// Close releases the backing buffer. Stats stays usable and reports an
// empty free list.
func (sh *SegmentHeap) Close() error {
	sh.head = nilOff
	sh.used = 0
	sh.live = 0
	return sh.r.Close()
}

// findFirst returns the lowest-addressed block that can hold the request.
func (sh *SegmentHeap) findFirst(size, alignment int) (fit, bool) {
	var found fit
	ok := false
	sh.walkCandidates(size, alignment, func(f fit, _ int) bool {
		found, ok = f, true
		return false
	})
	return found, ok
}

// findBest returns the block that leaves the least slack, the lowest address
// winning ties. A perfect fit ends the search.
func (sh *SegmentHeap) findBest(size, alignment int) (fit, bool) {
	var best fit
	bestWaste := -1
	sh.walkCandidates(size, alignment, func(f fit, waste int) bool {
		if bestWaste < 0 || waste < bestWaste {
			best, bestWaste = f, waste
		}
		return waste != 0
	})
	return best, bestWaste >= 0
}

// walkCandidates calls fn for every free block able to hold size bytes at
// alignment, with the bytes that would be left over. fn returns false to stop.
func (sh *SegmentHeap) walkCandidates(size, alignment int, fn func(f fit, waste int) bool) {
	prev := nilOff
	for cur := sh.head; cur != nilOff; prev, cur = cur, sh.blockNext(cur) {
		span := sh.blockCap(cur) + freeHeaderSize
		padding := align.Padding(sh.r.Addr(cur+headerSize), alignment)
		room := span - padding - headerSize
		if room < size {
			continue
		}
		f := fit{block: cur, prev: prev, padding: padding, total: padding + headerSize + size}
		if !fn(f, room-size) {
			return
		}
	}
}

// walkFree calls fn with the offset and capacity of every free block in
// address order. fn returns false to stop.
func (sh *SegmentHeap) walkFree(fn func(off, capacity int) bool) {
	for cur := sh.head; cur != nilOff; cur = sh.blockNext(cur) {
		if !fn(cur, sh.blockCap(cur)) {
			return
		}
	}
}

func (sh *SegmentHeap) blockCap(off int) int {
	return buf.Int(sh.r.Bytes(), off)
}

func (sh *SegmentHeap) blockNext(off int) int {
	return buf.Int(sh.r.Bytes(), off+buf.WordSize)
}

func (sh *SegmentHeap) putBlock(off, capacity, next int) {
	data := sh.r.Bytes()
	buf.PutInt(data, off, capacity)
	buf.PutInt(data, off+buf.WordSize, next)
}

// link points prev (or the list head when prev is nilOff) at next.
func (sh *SegmentHeap) link(prev, next int) {
	if prev == nilOff {
		sh.head = next
		return
	}
	buf.PutInt(sh.r.Bytes(), prev+buf.WordSize, next)
}

func (sh *SegmentHeap) emit(ev Event) {
	if sh.obs == nil {
		return
	}
	ev.Allocator = "heap"
	sh.obs(ev)
}

var _ Allocator = (*SegmentHeap)(nil)
