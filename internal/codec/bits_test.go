package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitOps(t *testing.T) {
	const status uint32 = 0xFFFFFBFF

	assert.False(t, BitSet(status, 10))
	assert.True(t, BitSet(status, 11))
	assert.True(t, BitSet(SetBit(status, 10), 10))
	assert.False(t, BitSet(ClearBit(status, 0), 0))
	assert.Equal(t, uint32(0xFFFFFFFF), SetBit(status, 10))
}

func TestBitsBetween(t *testing.T) {
	assert.Equal(t, uint32(0x0B), BitsBetween(0xFFFFFBFF, 8, 11))
	assert.Equal(t, uint32(0x3), BitsBetween(0b0110, 1, 2))
	assert.Equal(t, uint32(0xFFFFFBFF), BitsBetween(0xFFFFFBFF, 0, 31))
}

func TestBitCountAndPowerOfTwo(t *testing.T) {
	assert.Equal(t, 0, BitCount(0))
	assert.Equal(t, 1, BitCount(1))
	assert.Equal(t, 11, BitCount(1024))
	assert.True(t, IsPowerOfTwo(1024))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(12))
}
