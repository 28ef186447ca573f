package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPow2(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 16, 64, 4096, 1 << 30} {
		assert.True(t, IsPow2(n), "IsPow2(%d)", n)
	}
	for _, n := range []int{-8, 0, 3, 6, 12, 100, 4095} {
		assert.False(t, IsPow2(n), "IsPow2(%d)", n)
	}
}

func TestPadding(t *testing.T) {
	tests := []struct {
		addr      uintptr
		alignment int
		want      int
	}{
		{0x1000, 16, 0},
		{0x1001, 16, 15},
		{0x100f, 16, 1},
		{0x100c, 8, 4},
		{0x1010, 8, 0},
		{0x1003, 1, 0},
		{0x1001, 64, 63},
		{0x1040, 64, 0},
	}
	for _, tt := range tests {
		got := Padding(tt.addr, tt.alignment)
		assert.Equal(t, tt.want, got, "Padding(0x%x, %d)", tt.addr, tt.alignment)
		assert.True(t, Aligned(tt.addr+uintptr(got), tt.alignment))
	}
}

func TestUp(t *testing.T) {
	assert.Equal(t, 8, Up(1, 8))
	assert.Equal(t, 8, Up(8, 8))
	assert.Equal(t, 16, Up(9, 16))
	assert.Equal(t, 0, Up(0, 16))
	assert.Equal(t, 4096, Up(4095, 4096))
}
