package h02

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// DefaultMaxBuffer 单连接未成帧数据的上限
const DefaultMaxBuffer = 4096

var ErrBufferOverflow = errors.New("h02: receive buffer overflow")

// Handler 接收一个连接上解出的报文
type Handler interface {
	// HandleMessage frame 在回调返回后不再有效，需要保留时自行拷贝
	HandleMessage(frame []byte, msg *Message)
	// HandleDecodeError 完整帧解码失败，该帧已被丢弃，连接继续
	HandleDecodeError(frame []byte, err error)
}

// Adapter H02 协议适配器：连接私有缓冲 + 帧解码器，报文解码器可跨连接共享。
// 同一实例只能被一个读循环顺序调用。
type Adapter struct {
	ctx       context.Context
	remote    net.Addr
	frames    *FrameDecoder
	decoder   *Decoder
	handler   Handler
	buf       []byte
	maxBuffer int
}

// AdapterOption 适配器选项
type AdapterOption func(*Adapter)

// WithMessageLength 固定二进制帧长，0 为自动识别
func WithMessageLength(n int) AdapterOption {
	return func(a *Adapter) { a.frames = NewFrameDecoder(n) }
}

// WithMaxBuffer 未成帧缓冲上限
func WithMaxBuffer(n int) AdapterOption {
	return func(a *Adapter) {
		if n > 0 {
			a.maxBuffer = n
		}
	}
}

// NewAdapter 为一个连接创建适配器
func NewAdapter(ctx context.Context, remote net.Addr, decoder *Decoder, handler Handler, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		ctx:       ctx,
		remote:    remote,
		frames:    NewFrameDecoder(0),
		decoder:   decoder,
		handler:   handler,
		maxBuffer: DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sniff 首字节为 H02 帧标记
func (a *Adapter) Sniff(prefix []byte) bool {
	return len(prefix) > 0 && isMarker(prefix[0])
}

// Buffered 当前缓冲的未成帧字节数
func (a *Adapter) Buffered() int { return len(a.buf) }

// ProcessBytes 追加数据并处理所有完整帧。
// 缓冲超过上限时清空缓冲并返回 ErrBufferOverflow，由调用方决定是否断开。
func (a *Adapter) ProcessBytes(p []byte) error {
	a.buf = append(a.buf, p...)

	for len(a.buf) > 0 {
		frame, consumed := a.frames.Decode(a.buf)
		if frame == nil {
			a.discard(consumed)
			break
		}
		a.dispatch(frame)
		a.discard(consumed)
	}

	if len(a.buf) > a.maxBuffer {
		n := len(a.buf)
		a.buf = a.buf[:0]
		return fmt.Errorf("%w: %d bytes without a complete frame", ErrBufferOverflow, n)
	}
	return nil
}

func (a *Adapter) dispatch(frame []byte) {
	msg, err := a.decoder.Decode(a.ctx, frame, a.remote)
	if err != nil {
		if a.handler != nil {
			a.handler.HandleDecodeError(frame, err)
		}
		return
	}
	if a.handler != nil {
		a.handler.HandleMessage(frame, msg)
	}
}

// discard 丢弃缓冲头部 n 字节，剩余数据前移复用底层数组
func (a *Adapter) discard(n int) {
	if n <= 0 {
		return
	}
	if n >= len(a.buf) {
		a.buf = a.buf[:0]
		return
	}
	rest := copy(a.buf, a.buf[n:])
	a.buf = a.buf[:rest]
}
