package tcpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
)

// Handler 在连接开始读之前调用，用于安装 OnRead/OnClose 回调
type Handler func(cc *ConnContext)

// Server TCP 接入层：监听、接入控制、连接生命周期
type Server struct {
	cfg       config.TCPConfig
	logger    *zap.Logger
	admission *Admission
	handler   Handler

	mu    sync.Mutex
	ln    net.Listener
	conns map[string]*ConnContext

	wg       sync.WaitGroup
	stopC    chan struct{}
	stopOnce sync.Once

	// 可选指标回调
	onAccept    func()
	onReject    func(reason string)
	onRecvBytes func(n int)
}

// New 创建 TCP 服务
func New(cfg config.TCPConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		admission: NewAdmission(cfg.MaxConnections, cfg.AcquireTimeout, cfg.ConnectionRate, cfg.ConnectionBurst),
		conns:     make(map[string]*ConnContext),
		stopC:     make(chan struct{}),
	}
}

// SetHandler 设置连接处理器，须在 Start 前调用
func (s *Server) SetHandler(h Handler) { s.handler = h }

// SetMetricsCallbacks 设置指标回调，任一可为 nil
func (s *Server) SetMetricsCallbacks(onAccept func(), onReject func(reason string), onRecvBytes func(int)) {
	s.onAccept, s.onReject, s.onRecvBytes = onAccept, onReject, onRecvBytes
}

// Start 监听并在后台接受连接
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("tcp server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", s.cfg.TLS.Enable))

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if !s.cfg.TLS.Enable {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
		}
		return ln, nil
	}
	cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	ln, err := tls.Listen("tcp", s.cfg.Addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return nil, fmt.Errorf("listen tls %s: %w", s.cfg.Addr, err)
	}
	return ln, nil
}

// Addr 实际监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listening 是否处于监听状态（健康检查用）
func (s *Server) Listening() bool {
	select {
	case <-s.stopC:
		return false
	default:
	}
	return s.Addr() != nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			// 短暂错误等待后重试
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := s.admission.Admit(context.Background()); err != nil {
			reason := "limit"
			if errors.Is(err, ErrRateLimited) {
				reason = "rate"
			}
			if s.onReject != nil {
				s.onReject(reason)
			}
			s.logger.Debug("connection rejected",
				zap.String("remote", c.RemoteAddr().String()),
				zap.String("reason", reason))
			_ = c.Close()
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		s.wg.Add(1)
		go s.serve(c)
	}
}

func (s *Server) serve(c net.Conn) {
	defer s.wg.Done()
	defer s.admission.Release()

	cc := newConnContext(s, c)
	s.mu.Lock()
	s.conns[cc.id] = cc
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, cc.id)
		s.mu.Unlock()
	}()

	// 关闭流程中接入的连接直接断开
	select {
	case <-s.stopC:
		_ = cc.Close()
	default:
	}

	if s.handler != nil {
		s.handler(cc)
	}
	cc.run()
}

// ConnCount 当前连接数
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Stats 接入统计
func (s *Server) Stats() AdmissionStats { return s.admission.Stats() }

// Shutdown 停止监听并关闭所有连接，等待读写循环退出
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopC) })

	s.mu.Lock()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	conns := make([]*ConnContext, 0, len(s.conns))
	for _, cc := range s.conns {
		conns = append(conns, cc)
	}
	s.mu.Unlock()

	for _, cc := range conns {
		_ = cc.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.logger.Info("tcp server stopped", zap.Int("closed_connections", len(conns)))
		return nil
	}
}
