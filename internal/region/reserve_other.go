//go:build !unix

package region

import "github.com/joshuapare/arenakit/internal/align"

// reserve allocates from the Go heap when mmap is not available. The slice is
// over-allocated and shifted so the first byte is BaseAlign aligned; the Go
// heap does not move objects, so the address stays valid while data is live.
func reserve(size int) ([]byte, func() error, error) {
	raw := make([]byte, size+BaseAlign)
	shift := align.Padding(Address(raw), BaseAlign)
	return raw[shift : shift+size : shift+size], func() error { return nil }, nil
}
