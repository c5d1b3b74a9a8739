package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcdByteRoundTrip(t *testing.T) {
	for d := 0; d <= 99; d++ {
		require.Equal(t, d, BcdToInt(IntToBcd(d)), "digit %d", d)
	}
	assert.Equal(t, byte(0x42), IntToBcd(42))
	assert.Equal(t, 59, BcdToInt(0x59))
}

func TestReadWriteBcdInteger(t *testing.T) {
	tests := []struct {
		name   string
		length int
		value  int
		want   []byte
	}{
		{name: "单字节", length: 1, value: 7, want: []byte{0x07}},
		{name: "三字节", length: 3, value: 123456, want: []byte{0x12, 0x34, 0x56}},
		{name: "高位补零", length: 4, value: 2024, want: []byte{0x00, 0x00, 0x20, 0x24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.length+2)
			WriteBcdInteger(buf, 1, tt.length, tt.value)
			assert.Equal(t, tt.want, buf[1:1+tt.length])
			assert.Equal(t, tt.value, ReadBcdInteger(buf, 1, tt.length))
		})
	}
}

func TestReadBcdDigits(t *testing.T) {
	// 半字节序列 1 1 4 0 5 9 1 0 1 E
	buf := []byte{0x11, 0x40, 0x59, 0x10, 0x1E}
	assert.Equal(t, 114, ReadBcdDigits(buf, 0, 3))
	assert.Equal(t, 1140591, ReadBcdDigits(buf, 0, 7))
	assert.Equal(t, 405, ReadBcdDigits(buf, 2, 3))
	assert.Equal(t, 591, ReadBcdDigits(buf, 4, 3))
}

func TestBcdHexString(t *testing.T) {
	t.Run("偶数长度", func(t *testing.T) {
		buf := make([]byte, 4)
		WriteBcdHexString(buf, 0, 4, "1234abcd")
		assert.Equal(t, []byte{0x12, 0x34, 0xAB, 0xCD}, buf)
		assert.Equal(t, "1234ABCD", ReadBcdHexString(buf, 0, 4))
	})

	t.Run("奇数长度补F", func(t *testing.T) {
		buf := make([]byte, 3)
		WriteBcdHexString(buf, 0, 3, "123")
		assert.Equal(t, []byte{0x12, 0x3F, 0xFF}, buf)
		assert.Equal(t, "123", ReadBcdHexString(buf, 0, 3))
	})

	t.Run("IMEI 十五位", func(t *testing.T) {
		buf := make([]byte, 8)
		WriteBcdHexString(buf, 0, 8, "123456789012345")
		assert.Equal(t, "123456789012345", ReadBcdHexString(buf, 0, 8))
	})
}

func TestOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() { ReadBcdInteger([]byte{0x12}, 0, 2) })
}
