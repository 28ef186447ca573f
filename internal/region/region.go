// Package region provides the owned, fixed-size backing memory behind every
// allocator in this module.
//
// On unix systems a region is an anonymous private mapping, so it is page
// aligned and lives outside the Go heap. Elsewhere it is a Go slice shifted
// to a BaseAlign boundary. Either way the base address never moves for the
// lifetime of the region, which is what lets allocators reason about real
// addresses while only ever handing out bounds-checked slices.
package region

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/arenakit/internal/buf"
)

// BaseAlign is the minimum alignment of a region's first byte.
const BaseAlign = 64

// Region is a contiguous block of memory owned by exactly one allocator.
type Region struct {
	data    []byte
	base    uintptr
	release func() error
}

// New reserves size bytes.
func New(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("region: invalid size %d", size)
	}
	data, release, err := reserve(size)
	if err != nil {
		return nil, err
	}
	return &Region{
		data:    data,
		base:    Address(data),
		release: release,
	}, nil
}

// Len returns the region size in bytes, or 0 once closed.
func (r *Region) Len() int { return len(r.data) }

// Closed reports whether Close has been called.
func (r *Region) Closed() bool { return r.data == nil }

// Bytes returns the whole region.
func (r *Region) Bytes() []byte { return r.data }

// Base returns the address of the first byte.
func (r *Region) Base() uintptr { return r.base }

// Addr returns the address of the byte at off.
func (r *Region) Addr(off int) uintptr { return r.base + uintptr(off) }

// Slice returns the n bytes starting at off with capacity clipped to n.
// It panics if the range is outside the region, which would be an allocator bug.
func (r *Region) Slice(off, n int) []byte {
	s, ok := buf.Slice(r.data, off, n)
	if !ok {
		panic(fmt.Sprintf("region: slice [%d:+%d] outside %d-byte region", off, n, len(r.data)))
	}
	return s
}

// OffsetOf returns the offset of p's first byte within the region. ok is
// false for empty slices and for slices that do not start inside the region.
func (r *Region) OffsetOf(p []byte) (int, bool) {
	if len(p) == 0 || r.data == nil {
		return 0, false
	}
	addr := Address(p)
	if addr < r.base || addr >= r.base+uintptr(len(r.data)) {
		return 0, false
	}
	return int(addr - r.base), true
}

// Contains reports whether p starts inside the region.
func (r *Region) Contains(p []byte) bool {
	_, ok := r.OffsetOf(p)
	return ok
}

// Close releases the memory. Slices previously obtained from the region must
// not be used afterwards. Calling Close more than once is a no-op.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	release := r.release
	r.data = nil
	r.base = 0
	r.release = nil
	if release == nil {
		return nil
	}
	return release()
}

// Address returns the address of b's first element.
func Address(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
