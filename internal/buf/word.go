// Package buf contains bounds-checked helpers for reading and writing the
// bookkeeping words allocators keep inside their own buffers.
package buf

import "encoding/binary"

// WordSize is the width of every header field and free-list link stored in a
// backing buffer. It is fixed at 8 bytes so layouts are identical on 32- and
// 64-bit platforms.
const WordSize = 8

// PutWord writes v as a little-endian 64-bit word at b[off:].
func PutWord(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+WordSize], v)
}

// Word reads the little-endian 64-bit word at b[off:].
func Word(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+WordSize])
}

// PutInt stores v as a word. Negative values survive the round trip through
// Int, so -1 can serve as an end-of-list marker.
func PutInt(b []byte, off int, v int) {
	PutWord(b, off, uint64(v))
}

// Int reads a word previously stored with PutInt.
func Int(b []byte, off int) int {
	return int(Word(b, off))
}
