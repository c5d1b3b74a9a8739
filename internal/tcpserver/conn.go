package tcpserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrConnClosed     = errors.New("tcpserver: connection closed")
	ErrWriteQueueFull = errors.New("tcpserver: write queue timeout")
	// ErrIdleTimeout 超过 readTimeout 未收到任何数据
	ErrIdleTimeout = errors.New("tcpserver: idle timeout")
)

const (
	readBufferSize = 4096
	writeQueueSize = 128
)

// ConnContext 单个 TCP 连接：读循环在 serve goroutine 中运行，写入经队列由写循环发出
type ConnContext struct {
	s      *Server
	c      net.Conn
	id     string
	since  time.Time
	ctx    context.Context
	cancel context.CancelFunc

	writeC    chan []byte
	closeC    chan struct{}
	closeOnce sync.Once
	doneC     chan struct{}

	mu       sync.Mutex
	closeErr error

	onRead  func([]byte) error
	onClose func(err error)
}

func newConnContext(s *Server, c net.Conn) *ConnContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnContext{
		s:      s,
		c:      c,
		id:     uuid.NewString(),
		since:  time.Now(),
		ctx:    ctx,
		cancel: cancel,
		writeC: make(chan []byte, writeQueueSize),
		closeC: make(chan struct{}),
		doneC:  make(chan struct{}),
	}
}

// ID 连接ID（uuid）
func (cc *ConnContext) ID() string { return cc.id }

// RemoteAddr 远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// Since 建连时间
func (cc *ConnContext) Since() time.Time { return cc.since }

// Context 连接关闭时取消
func (cc *ConnContext) Context() context.Context { return cc.ctx }

// SetOnRead 上行数据回调，返回错误时断开连接。buf 在回调返回后被复用。
func (cc *ConnContext) SetOnRead(h func(buf []byte) error) { cc.onRead = h }

// SetOnClose 连接结束回调，err 为断开原因（对端关闭时为 io.EOF）
func (cc *ConnContext) SetOnClose(h func(err error)) { cc.onClose = h }

// Write 入队异步发送。队列满时最多等待 writeTimeout。
func (cc *ConnContext) Write(b []byte) error {
	select {
	case <-cc.closeC:
		return ErrConnClosed
	default:
	}
	// 调用方可能复用 b
	dup := make([]byte, len(b))
	copy(dup, b)

	to := cc.s.cfg.WriteTimeout
	if to <= 0 {
		to = 5 * time.Second
	}
	timer := time.NewTimer(to)
	defer timer.Stop()

	select {
	case cc.writeC <- dup:
		return nil
	case <-cc.closeC:
		return ErrConnClosed
	case <-timer.C:
		return ErrWriteQueueFull
	}
}

// Close 主动断开
func (cc *ConnContext) Close() error {
	return cc.closeWith(nil)
}

// closeWith 记录首个断开原因并关闭底层连接，可重复调用
func (cc *ConnContext) closeWith(reason error) error {
	var err error
	cc.closeOnce.Do(func() {
		cc.mu.Lock()
		cc.closeErr = reason
		cc.mu.Unlock()
		close(cc.closeC)
		cc.cancel()
		err = cc.c.Close()
	})
	return err
}

// Done 读写循环均已退出
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }

func (cc *ConnContext) writeLoop() {
	for {
		select {
		case <-cc.closeC:
			return
		case msg := <-cc.writeC:
			if cc.s.cfg.WriteTimeout > 0 {
				_ = cc.c.SetWriteDeadline(time.Now().Add(cc.s.cfg.WriteTimeout))
			}
			if _, err := cc.c.Write(msg); err != nil {
				_ = cc.closeWith(err)
				return
			}
		}
	}
}

// run 阻塞直至连接结束
func (cc *ConnContext) run() {
	defer close(cc.doneC)

	doneW := make(chan struct{})
	go func() {
		defer close(doneW)
		cc.writeLoop()
	}()

	reason := cc.readLoop()
	_ = cc.closeWith(reason)
	<-doneW

	cc.mu.Lock()
	reason = cc.closeErr
	cc.mu.Unlock()

	if reason != nil && !errors.Is(reason, io.EOF) && !errors.Is(reason, net.ErrClosed) {
		cc.s.logger.Debug("connection closed",
			zap.String("conn_id", cc.id),
			zap.String("remote", cc.RemoteAddr().String()),
			zap.Error(reason))
	}
	if cc.onClose != nil {
		cc.onClose(reason)
	}
}

func (cc *ConnContext) readLoop() error {
	timeout := cc.s.cfg.ReadTimeout
	buf := make([]byte, readBufferSize)
	for {
		if timeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(timeout))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if cc.onRead != nil {
				if herr := cc.onRead(buf[:n]); herr != nil {
					return herr
				}
			}
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return ErrIdleTimeout
			}
			return err
		}
	}
}
