// Package alloc provides a family of custom memory allocators that manage
// fixed buffers obtained once from the operating system.
//
// # Overview
//
// Each allocator owns its memory: an anonymous mapping on unix, an aligned Go
// slice elsewhere. Allocations are handed out as []byte slices into that
// memory with their capacity clipped to the requested length, and they are
// given back by passing the same slice to Free. No allocator ever calls into
// the Go heap on the allocation path, apart from BlockPool recording a new chunk.
//
// # Allocator Interface
//
// All four strategies implement Allocator:
//
//   - Alloc(size, alignment): allocate size bytes at a power-of-two alignment
//   - Free(p): release a slice previously returned by Alloc
//   - Reset(): drop every allocation at once
//   - Stats() / PrintStats(w): utilization snapshot and report
//   - Close(): release the backing memory
//
// # Implementations
//
// BumpArena: cursor only
//
//   - O(1) allocation, no per-allocation metadata
//   - Free is a no-op, memory comes back only through Reset
//
// StackArena: bump with LIFO rollback
//
//   - 16-byte {padding, total} header in front of each allocation
//   - Free must be called in reverse allocation order
//
// BlockPool: fixed-size blocks
//
//   - O(1) allocation and deallocation through an intrusive free list
//   - Grows by whole chunks, optionally capped by PoolConfig.MaxChunks
//
// SegmentHeap: general purpose free list
//
//   - Address-ordered free list, FirstFit or BestFit search
//   - Splits oversized blocks and coalesces neighbours on free
//
// # Usage Example
//
//	heap, err := alloc.NewHeap(64<<10, alloc.BestFit, nil)
//	if err != nil {
//	    return err
//	}
//	defer heap.Close()
//
//	p, err := heap.Allocate(256, 32)
//	if err != nil {
//	    return err
//	}
//	copy(p, payload)
//
//	// Later
//	err = heap.Free(p)
//
// Typed values without Go pointers can be placed in any allocator with New
// and NewSlice:
//
//	v, err := alloc.New[vertex](heap)
//
// # Alignment
//
// An alignment <= 0 selects MaxAlign (16). Any other alignment must be a power
// of two; passing something else is a caller error that is only checked when
// built with -tags allocdebug. Backing memory always starts on a 64-byte
// boundary and padding is computed from real addresses, so the returned
// slices are aligned in memory, not just relative to the buffer.
//
// # Preconditions
//
// The allocators trust their callers for the things that cannot be checked
// cheaply: LIFO order on StackArena, no double free, no use after Free or
// Reset. Build with -tags allocdebug to turn the cheap subset of those checks
// into panics. Slices that do not point into the allocator's memory are always
// rejected with ErrBadPointer.
//
// # Logging
//
// Every operation can be observed through Options.Observer. LogObserver adapts
// a *slog.Logger. When no observer is configured and ARENAKIT_LOG_ALLOC is set
// in the environment, events are logged to stderr.
//
// # Thread Safety
//
// Allocators are NOT thread-safe. Callers must serialize access.
package alloc
