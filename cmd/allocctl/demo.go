package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/alloc"
)

type tinyObject struct {
	Data byte
}

type smallObject struct {
	Flag  bool
	Value int32
}

type largeObject struct {
	Data [1024]byte
}

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through every allocator",
		Long: `The demo command allocates a few small objects from each allocator and
prints the allocator state after every step:

  bump   an int and a struct, then reset
  stack  tiny, large and small objects, freed in reverse order
  pool   64-byte blocks handed out and returned
  heap   the same fragmented free list searched first-fit and best-fit

Example:
  allocctl demo
  allocctl demo --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.OutOrStdout())
		},
	}
	return cmd
}

func runDemo(w io.Writer) error {
	return errors.Join(
		demoBump(w),
		demoStack(w),
		demoPool(w),
		demoHeap(w),
	)
}

func demoBump(w io.Writer) error {
	printHeading(w, "BumpArena")

	ba, err := alloc.NewBump(2048, allocOptions())
	if err != nil {
		return err
	}
	defer ba.Close()

	a, err := alloc.New[int64](ba)
	if err != nil {
		return err
	}
	*a = 3
	printInfo(w, "%d\n", *a)

	obj, err := alloc.New[smallObject](ba)
	if err != nil {
		return err
	}
	obj.Value = 11
	printInfo(w, "%d\n", obj.Value)

	printStats(w, ba)
	ba.Reset()
	printVerbose(w, "after reset: %d bytes used\n", ba.Used())
	return nil
}

func demoStack(w io.Writer) error {
	printHeading(w, "StackArena")

	sa, err := alloc.NewStack(2048, allocOptions())
	if err != nil {
		return err
	}
	defer sa.Close()

	tiny, err := alloc.New[tinyObject](sa)
	if err != nil {
		return err
	}
	printStats(w, sa)
	large, err := alloc.New[largeObject](sa)
	if err != nil {
		return err
	}
	printStats(w, sa)
	small, err := alloc.New[smallObject](sa)
	if err != nil {
		return err
	}
	printStats(w, sa)

	for _, release := range []func() error{
		func() error { return alloc.Release(sa, small) },
		func() error { return alloc.Release(sa, large) },
		func() error { return alloc.Release(sa, tiny) },
	} {
		if err := release(); err != nil {
			return err
		}
		printStats(w, sa)
	}
	return nil
}

func demoPool(w io.Writer) error {
	printHeading(w, "BlockPool")

	bp, err := alloc.NewPool(nil, allocOptions())
	if err != nil {
		return err
	}
	defer bp.Close()

	tiny, err := alloc.New[tinyObject](bp)
	if err != nil {
		return err
	}
	tiny.Data = 5
	printStats(w, bp)

	small, err := alloc.New[smallObject](bp)
	if err != nil {
		return err
	}
	small.Value, small.Flag = 11, true
	printStats(w, bp)

	if err := alloc.Release(bp, tiny); err != nil {
		return err
	}
	printStats(w, bp)
	return nil
}

func demoHeap(w io.Writer) error {
	printHeading(w, "SegmentHeap")

	for _, policy := range []alloc.Policy{alloc.FirstFit, alloc.BestFit} {
		if err := fragmentedFit(w, policy); err != nil {
			return err
		}
	}
	return nil
}

// fragmentedFit frees 16, 64, 32 and 128 byte holes separated by live bytes
// then reports where a 20-byte request lands under policy and what the free
// list looks like afterwards.
func fragmentedFit(w io.Writer, policy alloc.Policy) error {
	sh, err := alloc.NewHeap(1024, policy, allocOptions())
	if err != nil {
		return err
	}
	defer sh.Close()

	var holes [][]byte
	for _, size := range []int{16, 64, 32, 128} {
		p, err := sh.Allocate(size, 1)
		if err != nil {
			return err
		}
		if _, err := sh.Allocate(1, 1); err != nil {
			return err
		}
		holes = append(holes, p)
	}
	for _, p := range holes {
		if err := sh.Free(p); err != nil {
			return err
		}
	}

	p, err := sh.Allocate(20, 1)
	if err != nil {
		return err
	}
	printInfo(w, "%-9s holes [16 64 32 128], 20-byte request placed at offset %d\n", policy, sh.Offset(p))
	printStats(w, sh)
	return nil
}

func printStats(w io.Writer, a alloc.Allocator) {
	if quiet {
		return
	}
	if err := a.PrintStats(w); err != nil {
		fmt.Fprintln(w, errColor("stats: %v", err))
	}
}
