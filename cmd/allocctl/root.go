package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joshuapare/arenakit/alloc"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
)

var (
	headingColor = color.New(color.Bold, color.FgCyan).SprintfFunc()
	okColor      = color.New(color.FgGreen).SprintfFunc()
	errColor     = color.New(color.FgHiRed).SprintfFunc()
)

var rootCmd = &cobra.Command{
	Use:   "allocctl",
	Short: "Drive the arenakit allocators",
	Long: `allocctl runs the arenakit allocators (bump, stack, pool and heap)
against built-in demonstrations or recorded workloads, and reports how each
allocator laid out and reclaimed memory.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every allocator operation to stderr")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(w io.Writer, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printHeading prints a section title if not in quiet mode
func printHeading(w io.Writer, title string) {
	if !quiet {
		fmt.Fprintln(w, headingColor("======= %s =======", title))
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// allocOptions wires --verbose to a debug-level slog observer on stderr.
func allocOptions() *alloc.Options {
	if !verbose {
		return nil
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &alloc.Options{Observer: alloc.LogObserver(slog.New(h))}
}
