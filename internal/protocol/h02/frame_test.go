package h02

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameDecoder_Text(t *testing.T) {
	const msg = "*HQ,123,V1,123519,A,2234.0297,N,11405.9101,E,000.0,000,120316,FFFFFBFF#"

	t.Run("完整文本帧", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode([]byte(msg + "*HQ"))
		assert.Equal(t, msg, string(frame))
		assert.Equal(t, len(msg), consumed)
	})

	t.Run("缺少结束符", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode([]byte(msg[:len(msg)-1]))
		assert.Nil(t, frame)
		assert.Zero(t, consumed)
	})

	t.Run("前导垃圾", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode([]byte("JUNK" + msg))
		assert.Equal(t, msg, string(frame))
		assert.Equal(t, len(msg)+4, consumed)
	})

	t.Run("前导垃圾且帧不完整", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode([]byte("JUNK*HQ,1"))
		assert.Nil(t, frame)
		assert.Equal(t, 4, consumed)
	})

	t.Run("没有任何标记", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode([]byte("hello"))
		assert.Nil(t, frame)
		assert.Equal(t, 5, consumed)
	})

	t.Run("空缓冲", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode(nil)
		assert.Nil(t, frame)
		assert.Zero(t, consumed)
	})
}

func TestFrameDecoder_BinaryAutoDetect(t *testing.T) {
	long := append([]byte{'$'}, bytes.Repeat([]byte{0x11}, MessageLong-1)...)
	short := append([]byte{'$'}, bytes.Repeat([]byte{0x22}, MessageShort-1)...)

	t.Run("45字节锁定长帧", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode(long)
		assert.Len(t, frame, MessageLong)
		assert.Equal(t, MessageLong, consumed)
		assert.Equal(t, MessageLong, d.MessageLength())
	})

	t.Run("32字节锁定短帧", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode(short)
		assert.Len(t, frame, MessageShort)
		assert.Equal(t, MessageShort, consumed)
		assert.Equal(t, MessageShort, d.MessageLength())
	})

	t.Run("锁定后不再变化", func(t *testing.T) {
		d := NewFrameDecoder(0)
		d.Decode(short)
		frame, consumed := d.Decode(long)
		assert.Len(t, frame, MessageShort)
		assert.Equal(t, MessageShort, consumed)
	})

	t.Run("半包", func(t *testing.T) {
		d := NewFrameDecoder(MessageLong)
		frame, consumed := d.Decode(long[:40])
		assert.Nil(t, frame)
		assert.Zero(t, consumed)
	})

	t.Run("显式帧长", func(t *testing.T) {
		d := NewFrameDecoder(MessageLong)
		frame, _ := d.Decode(append(long, short...))
		assert.Len(t, frame, MessageLong)
	})
}

func TestFrameDecoder_Alternate(t *testing.T) {
	buf := append([]byte{'X'}, bytes.Repeat([]byte{0x01}, MessageLong-1)...)

	t.Run("默认短帧", func(t *testing.T) {
		d := NewFrameDecoder(0)
		frame, consumed := d.Decode(buf)
		assert.Len(t, frame, MessageShort)
		assert.Equal(t, MessageShort, consumed)
		assert.Zero(t, d.MessageLength(), "X 帧不参与自动识别")
	})

	t.Run("使用配置帧长", func(t *testing.T) {
		d := NewFrameDecoder(MessageLong)
		frame, _ := d.Decode(buf)
		assert.Len(t, frame, MessageLong)
	})
}
