package alloc

import (
	"fmt"
	"io"
	"slices"

	"github.com/joshuapare/arenakit/internal/assert"
	"github.com/joshuapare/arenakit/internal/buf"
	"github.com/joshuapare/arenakit/internal/region"
)

// PoolConfig sizes a BlockPool.
type PoolConfig struct {
	// BlockSize is the size of every block. Must be a positive multiple of
	// MaxAlign so each block starts MaxAlign-aligned.
	BlockSize int

	// ChunkSize is the number of blocks obtained from the system at a time.
	ChunkSize int

	// MaxChunks caps growth. 0 means unlimited.
	MaxChunks int
}

// DefaultPoolConfig is used when NewPool is given a nil config.
var DefaultPoolConfig = PoolConfig{
	BlockSize: 64,
	ChunkSize: 64,
}

func (c PoolConfig) validate() error {
	if c.BlockSize <= 0 || c.BlockSize%MaxAlign != 0 {
		return fmt.Errorf("%w: block size %d is not a positive multiple of %d", ErrBadConfig, c.BlockSize, MaxAlign)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size %d", ErrBadConfig, c.ChunkSize)
	}
	if c.MaxChunks < 0 {
		return fmt.Errorf("%w: max chunks %d", ErrBadConfig, c.MaxChunks)
	}
	if _, ok := buf.MulOverflowSafe(c.BlockSize, c.ChunkSize); !ok {
		return fmt.Errorf("%w: chunk of %d x %d bytes overflows", ErrBadConfig, c.ChunkSize, c.BlockSize)
	}
	return nil
}

// chunkRange locates a chunk by address so Free can map a slice back to its node.
type chunkRange struct {
	start uintptr
	end   uintptr // exclusive
	index int     // position in BlockPool.chunks
}

// BlockPool hands out fixed-size blocks from a list of chunks. Free blocks
// form an intrusive singly linked list: the first word of each free block
// holds the id+1 of the next free block, 0 terminating the list. Node ids are
// chunk*ChunkSize + slot, so a link stays valid no matter where the chunk's
// memory lives.
//
// Allocation pops the head and Free pushes onto it, so the most recently
// freed block is the next one handed out. When the list runs dry a new chunk
// is obtained and threaded in front of the old head.
type BlockPool struct {
	cfg        PoolConfig
	chunkBytes int

	chunks []*region.Region // growth order, indexed by node id / ChunkSize
	bins   []chunkRange     // sorted by start address
	head   int              // id+1 of the first free node, 0 when empty

	obs    Observer
	closed bool

	counters
	live int
}

// NewPool creates a BlockPool and allocates its first chunk.
// A nil cfg selects DefaultPoolConfig.
func NewPool(cfg *PoolConfig, opts *Options) (*BlockPool, error) {
	if cfg == nil {
		cfg = &DefaultPoolConfig
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	bp := &BlockPool{
		cfg:        *cfg,
		chunkBytes: cfg.BlockSize * cfg.ChunkSize,
		obs:        opts.observer(),
	}
	if err := bp.grow(); err != nil {
		return nil, err
	}
	return bp, nil
}

// Allocate pops a free block, growing the pool by one chunk first if none
// is left. The returned slice is BlockSize bytes, aligned to MaxAlign.
//
// Errors:
//   - ErrOutOfMemory: MaxChunks reached (state unchanged)
//   - ErrGrowFail: the system refused a new chunk
func (bp *BlockPool) Allocate() ([]byte, error) {
	if bp.closed {
		return nil, ErrClosed
	}
	bp.allocCalls++

	if bp.head == 0 {
		if err := bp.grow(); err != nil {
			bp.failedCalls++
			bp.emit(Event{Op: OpAlloc, Size: bp.cfg.BlockSize, Offset: -1, Err: err})
			return nil, err
		}
	}

	id := bp.head - 1
	r, off := bp.node(id)
	bp.head = buf.Int(r.Bytes(), off)
	bp.live++

	bp.emit(Event{Op: OpAlloc, Size: bp.cfg.BlockSize, Alignment: MaxAlign, Offset: id * bp.cfg.BlockSize, Total: bp.cfg.BlockSize})
	return r.Slice(off, bp.cfg.BlockSize), nil
}

// Alloc implements Allocator. It serves any request that fits in one block:
// size must not exceed BlockSize and alignment must not exceed MaxAlign,
// otherwise ErrOutOfMemory is returned without touching the pool.
func (bp *BlockPool) Alloc(size, alignment int) ([]byte, error) {
	if bp.closed {
		return nil, ErrClosed
	}
	if size <= 0 {
		bp.allocCalls++
		bp.failedCalls++
		return nil, ErrZeroSize
	}
	alignment = normalizeAlignment(alignment)
	if size > bp.cfg.BlockSize || alignment > MaxAlign {
		bp.allocCalls++
		bp.failedCalls++
		bp.emit(Event{Op: OpAlloc, Size: size, Alignment: alignment, Offset: -1, Err: ErrOutOfMemory})
		return nil, ErrOutOfMemory
	}

	p, err := bp.Allocate()
	if err != nil {
		return nil, err
	}
	return p[:size:size], nil
}

// Free pushes the block p back onto the free list. p may be any slice
// obtained from Allocate or Alloc on this pool.
func (bp *BlockPool) Free(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	id, ok := bp.lookup(p)
	if !ok {
		return ErrBadPointer
	}
	bp.freeCalls++

	r, off := bp.node(id)
	buf.PutInt(r.Bytes(), off, bp.head)
	bp.head = id + 1
	bp.live--

	bp.emit(Event{Op: OpFree, Size: bp.cfg.BlockSize, Offset: id * bp.cfg.BlockSize, Total: bp.cfg.BlockSize})
	return nil
}

// Reset returns every block of every chunk to the free list, in ascending
// chunk and slot order. Chunks are kept.
func (bp *BlockPool) Reset() {
	if bp.closed {
		return
	}
	tail := 0
	for idx := len(bp.chunks) - 1; idx >= 0; idx-- {
		bp.linkChunk(idx, tail)
		tail = idx*bp.cfg.ChunkSize + 1
	}
	bp.head = tail
	bp.live = 0
	bp.emit(Event{Op: OpReset, Offset: -1})
}

// BlockSize returns the configured block size.
func (bp *BlockPool) BlockSize() int { return bp.cfg.BlockSize }

// Chunks returns the number of chunks obtained so far.
func (bp *BlockPool) Chunks() int { return len(bp.chunks) }

// Offset returns the logical offset of p: its chunk index times the chunk
// size plus its position in the chunk. It is -1 if p is not from this pool.
func (bp *BlockPool) Offset(p []byte) int {
	id, ok := bp.lookup(p)
	if !ok {
		return -1
	}
	return id * bp.cfg.BlockSize
}

// Stats implements Allocator. FreeNodes is counted by walking the free list.
func (bp *BlockPool) Stats() Stats {
	capacity := len(bp.chunks) * bp.chunkBytes
	free := bp.countFree()
	s := Stats{
		Kind:      "pool",
		Capacity:  capacity,
		Used:      capacity - free*bp.cfg.BlockSize,
		Live:      bp.live,
		BlockSize: bp.cfg.BlockSize,
		ChunkSize: bp.cfg.ChunkSize,
		Chunks:    len(bp.chunks),
		FreeNodes: free,
	}
	bp.counters.fill(&s)
	return s
}

// PrintStats implements Allocator.
func (bp *BlockPool) PrintStats(w io.Writer) error {
	return WriteStats(w, bp.Stats())
}

// Close releases every chunk. The first error encountered is returned but
// all chunks are released regardless.
func (bp *BlockPool) Close() error {
	if bp.closed {
		return nil
	}
	bp.closed = true

	var firstErr error
	for _, r := range bp.chunks {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	bp.chunks = nil
	bp.bins = nil
	bp.head = 0
	bp.live = 0
	return firstErr
}

// grow obtains one chunk and threads its nodes in front of the current head.
func (bp *BlockPool) grow() error {
	if bp.cfg.MaxChunks > 0 && len(bp.chunks) >= bp.cfg.MaxChunks {
		return ErrOutOfMemory
	}
	r, err := region.New(bp.chunkBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGrowFail, err)
	}

	idx := len(bp.chunks)
	bp.chunks = append(bp.chunks, r)
	bp.insertRange(chunkRange{start: r.Base(), end: r.Base() + uintptr(r.Len()), index: idx})

	bp.linkChunk(idx, bp.head)
	bp.head = idx*bp.cfg.ChunkSize + 1

	bp.emit(Event{Op: OpGrow, Size: bp.chunkBytes, Offset: idx * bp.chunkBytes, Total: bp.chunkBytes})
	return nil
}

// linkChunk links slot i to slot i+1 and the last slot to tail (an id+1).
func (bp *BlockPool) linkChunk(idx, tail int) {
	data := bp.chunks[idx].Bytes()
	n, bs := bp.cfg.ChunkSize, bp.cfg.BlockSize
	first := idx * n
	for slot := 0; slot < n-1; slot++ {
		buf.PutInt(data, slot*bs, first+slot+2)
	}
	buf.PutInt(data, (n-1)*bs, tail)
}

func (bp *BlockPool) node(id int) (*region.Region, int) {
	return bp.chunks[id/bp.cfg.ChunkSize], (id % bp.cfg.ChunkSize) * bp.cfg.BlockSize
}

func (bp *BlockPool) insertRange(cr chunkRange) {
	i, _ := slices.BinarySearchFunc(bp.bins, cr.start, func(b chunkRange, start uintptr) int {
		switch {
		case b.start < start:
			return -1
		case b.start > start:
			return 1
		default:
			return 0
		}
	})
	bp.bins = slices.Insert(bp.bins, i, cr)
}

// lookup maps a slice back to its node id by binary searching the chunk
// address ranges.
func (bp *BlockPool) lookup(p []byte) (int, bool) {
	if len(p) == 0 || bp.closed {
		return 0, false
	}
	addr := region.Address(p)
	lo, hi := 0, len(bp.bins)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		b := bp.bins[mid]

		if addr < b.start {
			hi = mid - 1
		} else if addr >= b.end {
			lo = mid + 1
		} else {
			off := int(addr - b.start)
			assert.That(off%bp.cfg.BlockSize == 0, "pool: pointer at chunk offset %d is not a block start", off)
			if off%bp.cfg.BlockSize != 0 {
				return 0, false
			}
			return b.index*bp.cfg.ChunkSize + off/bp.cfg.BlockSize, true
		}
	}
	return 0, false
}

func (bp *BlockPool) countFree() int {
	n := 0
	for next := bp.head; next != 0; n++ {
		r, off := bp.node(next - 1)
		next = buf.Int(r.Bytes(), off)
	}
	return n
}

func (bp *BlockPool) emit(ev Event) {
	if bp.obs == nil {
		return
	}
	ev.Allocator = "pool"
	bp.obs(ev)
}

var _ Allocator = (*BlockPool)(nil)
