package alloc

import (
	"reflect"
	"unsafe"
)

// New allocates a zeroed T from a and returns a pointer into the allocator's
// buffer. T must not contain Go pointers: the garbage collector does not scan
// allocator memory, so anything referenced only from there could be freed
// underneath it.
//
// Example:
//
//	type point struct{ X, Y float64 }
//	p, err := alloc.New[point](heap)
//	...
//	err = alloc.Release(heap, p)
func New[T any](a Allocator) (*T, error) {
	var zero T
	if hasPointers(reflect.TypeFor[T]()) {
		return nil, ErrPointerType
	}
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return nil, ErrZeroSize
	}
	p, err := a.Alloc(size, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	clear(p)
	return (*T)(unsafe.Pointer(unsafe.SliceData(p))), nil
}

// NewSlice allocates a zeroed []T of length n from a. The same pointer
// restriction as New applies.
func NewSlice[T any](a Allocator, n int) ([]T, error) {
	var zero T
	if hasPointers(reflect.TypeFor[T]()) {
		return nil, ErrPointerType
	}
	elem := int(unsafe.Sizeof(zero))
	if n <= 0 || elem == 0 {
		return nil, ErrZeroSize
	}
	if n > int(^uint(0)>>1)/elem {
		return nil, ErrOutOfMemory
	}
	p, err := a.Alloc(n*elem, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	clear(p)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(p))), n), nil
}

// Release returns v, obtained from New on the same allocator, to a.
// A nil v is a no-op.
func Release[T any](a Allocator, v *T) error {
	if v == nil {
		return nil
	}
	return a.Free(unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v)))
}

// ReleaseSlice returns s, obtained from NewSlice on the same allocator, to a.
func ReleaseSlice[T any](a Allocator, s []T) error {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return a.Free(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*int(unsafe.Sizeof(zero))))
}

// hasPointers reports whether values of t can hold a Go pointer.
func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
