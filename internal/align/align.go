// Package align holds the address arithmetic shared by the allocators.
//
// Every alignment passed to these helpers must be a power of two. That is a
// caller precondition and is not checked here.
package align

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Padding returns how many bytes must be skipped from addr to reach the next
// multiple of alignment.
//
// Example:
//
//	Padding(0x1000, 16) = 0
//	Padding(0x1001, 16) = 15
//	Padding(0x100c, 8)  = 4
func Padding(addr uintptr, alignment int) int {
	mask := uintptr(alignment) - 1
	return int(-addr & mask)
}

// Up returns n rounded up to the next multiple of alignment.
//
// Example:
//
//	Up(1, 8)  = 8
//	Up(8, 8)  = 8
//	Up(9, 16) = 16
func Up(n, alignment int) int {
	mask := alignment - 1
	return (n + mask) &^ mask
}

// Aligned reports whether addr is a multiple of alignment.
func Aligned(addr uintptr, alignment int) bool {
	return addr&(uintptr(alignment)-1) == 0
}
