package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/alloc"
)

var (
	replayAllocator string
	replayPolicy    string
	replayCapacity  int
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().StringVar(&replayAllocator, "allocator", "", "Allocator to use: bump, stack, pool or heap (overrides the trace)")
	cmd.Flags().StringVar(&replayPolicy, "policy", "", "Heap search policy: first or best (overrides the trace)")
	cmd.Flags().IntVar(&replayCapacity, "capacity", 0, "Buffer size in bytes (overrides the trace)")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay a recorded workload",
		Long: `The replay command runs the alloc, free and reset steps of a YAML trace
against one allocator and prints the offset each step produced, followed by
the final allocator statistics.

Example:
  allocctl replay testdata/fragment.yaml
  allocctl replay testdata/fragment.yaml --policy best
  allocctl replay testdata/fragment.yaml --allocator stack --capacity 4096 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args)
		},
	}
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	printVerbose(w, "Loading trace: %s\n", args[0])
	tr, err := loadTrace(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("allocator") {
		tr.Allocator = replayAllocator
	}
	if cmd.Flags().Changed("policy") {
		tr.Policy = replayPolicy
	}
	if cmd.Flags().Changed("capacity") {
		tr.Capacity = replayCapacity
	}

	report, err := replay(tr, allocOptions())
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(w, report)
	}
	if quiet {
		return nil
	}
	renderReport(w, report)
	return nil
}

func renderReport(w io.Writer, report *Report) {
	printHeading(w, fmt.Sprintf("replay: %s", report.Allocator))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Step", "Op", "Name", "Size", "Align", "Offset", "Result"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)

	for _, s := range report.Steps {
		result := okColor("ok")
		if s.Err != "" {
			result = errColor("%s", s.Err)
		}
		table.Append([]string{
			strconv.Itoa(s.Step),
			s.Op,
			s.Name,
			optInt(s.Size),
			optInt(s.Align),
			offsetCell(s.Offset),
			result,
		})
	}
	table.Render()

	if err := alloc.WriteStats(w, report.Stats); err != nil {
		fmt.Fprintln(w, errColor("stats: %v", err))
	}
}

func offsetCell(off int) string {
	if off < 0 {
		return "-"
	}
	return strconv.Itoa(off)
}

// optInt formats n, leaving zero blank.
func optInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
