package alloc

import "errors"

var (
	// ErrOutOfMemory indicates the free space left cannot hold the requested
	// size plus its alignment and header overhead. The allocator is unchanged.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrZeroSize indicates a request for zero or negative bytes.
	ErrZeroSize = errors.New("alloc: size must be positive")

	// ErrBadPointer indicates a slice that does not start inside this allocator's memory.
	ErrBadPointer = errors.New("alloc: pointer not owned by allocator")

	// ErrCapacityTooSmall indicates a capacity that cannot hold a single header.
	ErrCapacityTooSmall = errors.New("alloc: capacity too small")

	// ErrBadConfig indicates an invalid pool configuration.
	ErrBadConfig = errors.New("alloc: invalid pool config")

	// ErrGrowFail indicates the pool could not reserve a new chunk.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrClosed indicates use of an allocator after Close.
	ErrClosed = errors.New("alloc: allocator closed")

	// ErrPointerType indicates a type holding Go pointers was passed to New or NewSlice.
	ErrPointerType = errors.New("alloc: type contains Go pointers")
)
