package h02

import "bytes"

// 帧起始标记
const (
	MarkerText   byte = '*'
	MarkerBinary byte = '$'
	MarkerAlt    byte = 'X'

	textEnd byte = '#'
)

// 二进制帧长度
const (
	MessageShort = 32
	MessageLong  = 45
)

// FrameDecoder 从连接缓冲中切出完整帧，不解释帧内容。
// 自动识别的二进制帧长在首次遇到 '$' 时锁定，之后对该连接保持不变，
// 因此每个连接必须使用独立实例，且不可并发调用。
type FrameDecoder struct {
	messageLength int
}

// NewFrameDecoder messageLength 为 0 表示自动识别
func NewFrameDecoder(messageLength int) *FrameDecoder {
	if messageLength < 0 {
		messageLength = 0
	}
	return &FrameDecoder{messageLength: messageLength}
}

// MessageLength 当前锁定的二进制帧长，0 表示尚未确定
func (d *FrameDecoder) MessageLength() int { return d.messageLength }

// Decode 尝试切出一帧。
// 返回 frame 为 nil 表示数据不足；consumed 为调用方应从缓冲头部丢弃的字节数，
// 包含帧前的垃圾字节（即使本次没有完整帧，垃圾字节也可以先丢弃）。
// frame 与 buf 共享底层数组。
func (d *FrameDecoder) Decode(buf []byte) (frame []byte, consumed int) {
	if len(buf) == 0 {
		return nil, 0
	}

	skip := 0
	if !isMarker(buf[0]) {
		skip = indexMarker(buf)
		if skip < 0 {
			// 没有任何标记，整段都是垃圾
			return nil, len(buf)
		}
	}
	data := buf[skip:]

	var n int
	switch data[0] {
	case MarkerText:
		end := bytes.IndexByte(data, textEnd)
		if end < 0 {
			return nil, skip
		}
		n = end + 1
	case MarkerBinary:
		if d.messageLength == 0 {
			if len(data) == MessageLong {
				d.messageLength = MessageLong
			} else {
				d.messageLength = MessageShort
			}
		}
		n = d.messageLength
	case MarkerAlt:
		n = d.messageLength
		if n == 0 {
			n = MessageShort
		}
	default:
		return nil, skip
	}

	if len(data) < n {
		return nil, skip
	}
	return data[:n], skip + n
}

func isMarker(b byte) bool {
	return b == MarkerText || b == MarkerBinary || b == MarkerAlt
}

func indexMarker(b []byte) int {
	for i, c := range b {
		if isMarker(c) {
			return i
		}
	}
	return -1
}
