package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/arenakit/alloc"
)

// Trace is a recorded workload, loaded from YAML:
//
//	allocator: heap
//	policy: best
//	capacity: 1024
//	steps:
//	  - {op: alloc, name: a, size: 16, align: 1}
//	  - {op: free, name: a}
//	  - {op: reset}
type Trace struct {
	Allocator string     `yaml:"allocator"`
	Policy    string     `yaml:"policy"`
	Capacity  int        `yaml:"capacity"`
	Pool      PoolConfig `yaml:"pool"`
	Steps     []Step     `yaml:"steps"`
}

// PoolConfig mirrors alloc.PoolConfig for trace files.
type PoolConfig struct {
	BlockSize int `yaml:"block_size"`
	ChunkSize int `yaml:"chunk_size"`
	MaxChunks int `yaml:"max_chunks"`
}

// Step is one operation of a trace. Allocations are named so later free
// steps can refer to them.
type Step struct {
	Op    string `yaml:"op"`
	Name  string `yaml:"name"`
	Size  int    `yaml:"size"`
	Align int    `yaml:"align"`
}

var errTrace = errors.New("invalid trace")

func loadTrace(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()

	var tr Trace
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}
	return &tr, nil
}

func (tr *Trace) validate() error {
	switch tr.Allocator {
	case "bump", "stack", "pool", "heap":
	default:
		return fmt.Errorf("%w: unknown allocator %q", errTrace, tr.Allocator)
	}
	if _, err := parsePolicy(tr.Policy); err != nil {
		return err
	}
	if tr.Allocator != "pool" && tr.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", errTrace)
	}

	names := make(map[string]bool)
	for i, s := range tr.Steps {
		switch s.Op {
		case "alloc":
			if s.Name == "" {
				return fmt.Errorf("%w: step %d: alloc needs a name", errTrace, i+1)
			}
			names[s.Name] = true
		case "free":
			if !names[s.Name] {
				return fmt.Errorf("%w: step %d: free of unknown allocation %q", errTrace, i+1, s.Name)
			}
		case "reset":
		default:
			return fmt.Errorf("%w: step %d: unknown op %q", errTrace, i+1, s.Op)
		}
	}
	return nil
}

func parsePolicy(s string) (alloc.Policy, error) {
	switch strings.ToLower(s) {
	case "", "first", "first-fit":
		return alloc.FirstFit, nil
	case "best", "best-fit":
		return alloc.BestFit, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q", errTrace, s)
	}
}

// offsetter is implemented by every allocator in the alloc package.
type offsetter interface {
	Offset(p []byte) int
}

// newAllocator builds the allocator a trace asks for.
func newAllocator(tr *Trace, opts *alloc.Options) (alloc.Allocator, error) {
	switch tr.Allocator {
	case "bump":
		return alloc.NewBump(tr.Capacity, opts)
	case "stack":
		return alloc.NewStack(tr.Capacity, opts)
	case "pool":
		cfg := alloc.DefaultPoolConfig
		if tr.Pool.BlockSize > 0 {
			cfg.BlockSize = tr.Pool.BlockSize
		}
		if tr.Pool.ChunkSize > 0 {
			cfg.ChunkSize = tr.Pool.ChunkSize
		}
		cfg.MaxChunks = tr.Pool.MaxChunks
		return alloc.NewPool(&cfg, opts)
	default:
		policy, err := parsePolicy(tr.Policy)
		if err != nil {
			return nil, err
		}
		return alloc.NewHeap(tr.Capacity, policy, opts)
	}
}

// StepResult is the outcome of one replayed step.
type StepResult struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	Name   string `json:"name,omitempty"`
	Size   int    `json:"size,omitempty"`
	Align  int    `json:"align,omitempty"`
	Offset int    `json:"offset"`
	Err    string `json:"error,omitempty"`
}

// Report is the outcome of a whole replay.
type Report struct {
	Allocator string       `json:"allocator"`
	Steps     []StepResult `json:"steps"`
	Stats     alloc.Stats  `json:"stats"`
}

// replay runs every step of tr against a fresh allocator. Allocation
// failures are recorded in the report, not returned: they are part of what
// a trace is meant to show.
func replay(tr *Trace, opts *alloc.Options) (*Report, error) {
	if err := tr.validate(); err != nil {
		return nil, err
	}
	a, err := newAllocator(tr, opts)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	off := a.(offsetter)

	live := make(map[string][]byte)
	report := &Report{Allocator: tr.Allocator}
	for i, s := range tr.Steps {
		res := StepResult{Step: i + 1, Op: s.Op, Name: s.Name, Size: s.Size, Align: s.Align, Offset: -1}

		switch s.Op {
		case "alloc":
			p, err := a.Alloc(s.Size, s.Align)
			if err != nil {
				res.Err = err.Error()
				break
			}
			res.Offset = off.Offset(p)
			live[s.Name] = p
		case "free":
			p, ok := live[s.Name]
			if !ok {
				res.Err = "not live"
				break
			}
			res.Offset = off.Offset(p)
			if err := a.Free(p); err != nil {
				res.Err = err.Error()
				break
			}
			delete(live, s.Name)
		case "reset":
			a.Reset()
			clear(live)
		}
		report.Steps = append(report.Steps, res)
	}
	report.Stats = a.Stats()
	return report, nil
}
