package alloc

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a point-in-time snapshot of an allocator. Fields that do not apply
// to a strategy are left zero.
type Stats struct {
	Kind     string // "bump", "stack", "pool" or "heap"
	Capacity int    // bytes owned by the allocator
	Used     int    // bytes consumed by live allocations, padding and headers
	Live     int    // live allocations, where the strategy can count them

	AllocCalls  int
	FreeCalls   int
	FailedCalls int

	// SegmentHeap
	Policy           string
	FreeBlocks       []int // capacities of the free blocks in address order
	SplitCount       int
	CoalesceForward  int
	CoalesceBackward int

	// BlockPool
	BlockSize int
	ChunkSize int
	Chunks    int
	FreeNodes int
}

// Free returns the number of bytes not in use.
func (s Stats) Free() int { return s.Capacity - s.Used }

// Utilization returns Used as a percentage of Capacity.
func (s Stats) Utilization() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return 100 * float64(s.Used) / float64(s.Capacity)
}

// FreeBlockCount returns the number of free blocks in a SegmentHeap.
func (s Stats) FreeBlockCount() int { return len(s.FreeBlocks) }

// LargestFreeBlock returns the capacity of the biggest SegmentHeap free block.
func (s Stats) LargestFreeBlock() int {
	largest := 0
	for _, c := range s.FreeBlocks {
		largest = max(largest, c)
	}
	return largest
}

// counters are the call tallies every allocator keeps.
type counters struct {
	allocCalls  int
	freeCalls   int
	failedCalls int
}

func (c counters) fill(s *Stats) {
	s.AllocCalls = c.allocCalls
	s.FreeCalls = c.freeCalls
	s.FailedCalls = c.failedCalls
}

// WriteStats writes a report for s to w. Numbers are grouped in thousands.
func WriteStats(w io.Writer, s Stats) error {
	p := message.NewPrinter(language.English)
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = p.Fprintf(w, format, args...)
		}
	}

	printf("%s: %d/%d bytes used (%.1f%%)\n", s.Kind, s.Used, s.Capacity, s.Utilization())
	if s.Live > 0 {
		printf("  Live allocations:  %d\n", s.Live)
	}
	printf("  Calls:             alloc %d, free %d, failed %d\n", s.AllocCalls, s.FreeCalls, s.FailedCalls)

	switch s.Kind {
	case "heap":
		printf("  Policy:            %s\n", s.Policy)
		printf("  Free block sizes: ")
		for _, c := range s.FreeBlocks {
			printf(" %d", c)
		}
		printf("\n")
		printf("  Free blocks:       %d (largest %d)\n", s.FreeBlockCount(), s.LargestFreeBlock())
		printf("  Splits:            %d\n", s.SplitCount)
		printf("  Coalesce fwd/back: %d/%d\n", s.CoalesceForward, s.CoalesceBackward)
	case "pool":
		printf("  Block size:        %d\n", s.BlockSize)
		printf("  Chunk size:        %d blocks\n", s.ChunkSize)
		printf("  Chunks:            %d\n", s.Chunks)
		printf("  Free blocks:       %d\n", s.FreeNodes)
	}
	return err
}
