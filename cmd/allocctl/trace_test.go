package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arenakit/alloc"
)

func testTrace(t *testing.T, name string) *Trace {
	t.Helper()
	tr, err := loadTrace(filepath.Join("testdata", name))
	require.NoError(t, err)
	return tr
}

func stepByName(t *testing.T, r *Report, op, name string) StepResult {
	t.Helper()
	for _, s := range r.Steps {
		if s.Op == op && s.Name == name {
			return s
		}
	}
	require.FailNow(t, "step not found", "%s %s", op, name)
	return StepResult{}
}

func TestReplay_FirstFitVsBestFit(t *testing.T) {
	tests := []struct {
		policy     string
		hole       string
		freeBlocks int
	}{
		{"first", "c", 5}, // 64-byte hole split, remainder stays free
		{"best", "e", 4},  // 32-byte hole consumed whole
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			tr := testTrace(t, "fragment.yaml")
			tr.Policy = tt.policy

			r, err := replay(tr, nil)
			require.NoError(t, err)
			require.Len(t, r.Steps, 13)

			x := stepByName(t, r, "alloc", "x")
			require.Empty(t, x.Err)
			assert.Equal(t, stepByName(t, r, "alloc", tt.hole).Offset, x.Offset)
			assert.Equal(t, tt.freeBlocks, r.Stats.FreeBlockCount())
		})
	}
}

func TestReplay_Stack(t *testing.T) {
	r, err := replay(testTrace(t, "lifo.yaml"), nil)
	require.NoError(t, err)

	huge := stepByName(t, r, "alloc", "huge")
	assert.Equal(t, alloc.ErrOutOfMemory.Error(), huge.Err)
	assert.Equal(t, -1, huge.Offset)

	for _, s := range r.Steps {
		if s.Name != "huge" {
			assert.Empty(t, s.Err, "step %d", s.Step)
		}
	}
	assert.Equal(t, "stack", r.Stats.Kind)
	assert.Zero(t, r.Stats.Used, "trace ends with a reset")
}

func TestReplay_Pool(t *testing.T) {
	tr := &Trace{
		Allocator: "pool",
		Pool:      PoolConfig{BlockSize: 32, ChunkSize: 2, MaxChunks: 1},
		Steps: []Step{
			{Op: "alloc", Name: "a", Size: 32},
			{Op: "alloc", Name: "b", Size: 8, Align: 8},
			{Op: "alloc", Name: "c", Size: 8},
			{Op: "free", Name: "a"},
			{Op: "alloc", Name: "d", Size: 64},
			{Op: "alloc", Name: "e", Size: 16},
		},
	}
	r, err := replay(tr, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, r.Steps[0].Offset)
	assert.Equal(t, 32, r.Steps[1].Offset)
	assert.Equal(t, alloc.ErrOutOfMemory.Error(), r.Steps[2].Err, "max chunks reached")
	assert.Equal(t, alloc.ErrOutOfMemory.Error(), r.Steps[4].Err, "larger than a block")
	assert.Equal(t, 0, r.Steps[5].Offset, "freed block is reused")
	assert.Equal(t, 1, r.Stats.Chunks)
}

func TestReplay_Bump(t *testing.T) {
	tr := &Trace{
		Allocator: "bump",
		Capacity:  64,
		Steps: []Step{
			{Op: "alloc", Name: "a", Size: 1, Align: 1},
			{Op: "alloc", Name: "b", Size: 8, Align: 8},
			{Op: "free", Name: "a"},
			{Op: "alloc", Name: "c", Size: 1, Align: 1},
		},
	}
	r, err := replay(tr, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, r.Steps[1].Offset)
	assert.Equal(t, 16, r.Steps[3].Offset, "bump free reclaims nothing")
}

func TestTrace_Validate(t *testing.T) {
	tests := []struct {
		name string
		tr   Trace
	}{
		{"unknown allocator", Trace{Allocator: "slab", Capacity: 64}},
		{"unknown policy", Trace{Allocator: "heap", Policy: "worst", Capacity: 64}},
		{"no capacity", Trace{Allocator: "heap"}},
		{"unnamed alloc", Trace{Allocator: "heap", Capacity: 64, Steps: []Step{{Op: "alloc", Size: 8}}}},
		{"unknown free", Trace{Allocator: "heap", Capacity: 64, Steps: []Step{{Op: "free", Name: "x"}}}},
		{"unknown op", Trace{Allocator: "heap", Capacity: 64, Steps: []Step{{Op: "grow"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := replay(&tt.tr, nil)
			require.ErrorIs(t, err, errTrace)
		})
	}
}

func TestLoadTrace_Errors(t *testing.T) {
	_, err := loadTrace(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, writeFile(path, "allocator: heap\nbogus: 1\n"))
	_, err = loadTrace(path)
	require.Error(t, err, "unknown fields are rejected")
}

func TestRenderReport(t *testing.T) {
	r, err := replay(testTrace(t, "lifo.yaml"), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	renderReport(&out, r)
	assert.Contains(t, out.String(), "replay: stack")
	assert.Contains(t, out.String(), "Offset")
	assert.Contains(t, out.String(), "out of memory")
	assert.Contains(t, out.String(), "stack: 0/2,048 bytes used")
}

func TestReplayCommand_JSON(t *testing.T) {
	t.Cleanup(func() { jsonOut = false })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", filepath.Join("testdata", "fragment.yaml"), "--json", "--policy", "best"})
	require.NoError(t, rootCmd.Execute())

	var r Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, "best-fit", r.Stats.Policy)
	assert.Len(t, r.Steps, 13)
}
