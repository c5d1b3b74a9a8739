package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/events"
	"github.com/taoyao-code/h02-server/internal/protocol/adapter"
	"github.com/taoyao-code/h02-server/internal/protocol/h02"
	"github.com/taoyao-code/h02-server/internal/tcpserver"
)

// connSession 一个连接上的会话状态。所有回调都在该连接的读循环中顺序执行。
type connSession struct {
	g       *Gateway
	cc      *tcpserver.ConnContext
	adapter adapter.Adapter
	remote  string
	sniffed bool
	// devices 设备ID -> 原始标识
	devices map[string]string
	// lastDevice 最近一次成功解码的设备ID，断开事件使用
	lastDevice string
}

// HandleConn 安装到 tcpserver.Server
func (g *Gateway) HandleConn(cc *tcpserver.ConnContext) {
	s := &connSession{
		g:       g,
		cc:      cc,
		remote:  cc.RemoteAddr().String(),
		devices: make(map[string]string),
	}

	s.adapter = h02.NewAdapter(cc.Context(), cc.RemoteAddr(), g.decoder, s,
		h02.WithMessageLength(g.opts.MessageLength),
		h02.WithMaxBuffer(g.opts.MaxBuffer),
	)
	cc.SetOnRead(func(p []byte) error {
		if !s.sniffed {
			s.sniffed = true
			if !s.adapter.Sniff(p) {
				g.logger.Debug("first bytes do not look like h02",
					zap.String("conn_id", cc.ID()),
					zap.String("remote_addr", s.remote))
			}
		}
		if err := s.adapter.ProcessBytes(p); err != nil {
			return s.fail("buffer", err)
		}
		return nil
	})
	cc.SetOnClose(s.closed)

	e := s.event(events.KindConnect)
	g.publish(context.Background(), e)
}

func (s *connSession) event(kind events.Kind) *events.Event {
	e := events.New(kind)
	e.ConnID = s.cc.ID()
	e.RemoteAddr = s.remote
	e.DeviceID = s.lastDevice
	return e
}

func (s *connSession) HandleMessage(frame []byte, msg *h02.Message) {
	g := s.g
	pos := msg.Position
	g.countFrame(msg.Subtype.String(), "ok")

	if pos.DeviceID != "" {
		s.lastDevice = pos.DeviceID
		s.devices[pos.DeviceID] = msg.RawID
		replaced, created := g.sessions.Bind(pos.DeviceID, s.cc)
		if replaced != nil {
			g.logger.Info("device moved to new connection",
				zap.String("device_id", pos.DeviceID),
				zap.String("old_conn", replaced.ID()),
				zap.String("new_conn", s.cc.ID()))
		}
		if created {
			g.updateOnline()
		}
	}

	e := s.event(events.KindPosition)
	e.Position = pos
	g.publish(s.cc.Context(), e)

	if g.opts.Acknowledge && !msg.Binary {
		s.ack(frame)
	}
}

func (s *connSession) ack(frame []byte) {
	g := s.g
	reply := h02.Ack(frame, g.now())
	if reply == nil {
		return
	}
	if err := s.cc.Write(reply); err != nil {
		if g.metrics != nil {
			g.metrics.AcksTotal.WithLabelValues("error").Inc()
		}
		e := s.event(events.KindError)
		e.Context = "ack"
		e.Error = err.Error()
		g.publish(context.Background(), e)
		return
	}
	if g.metrics != nil {
		g.metrics.AcksTotal.WithLabelValues("ok").Inc()
	}
}

func (s *connSession) HandleDecodeError(frame []byte, err error) {
	result := "error"
	switch {
	case errors.Is(err, h02.ErrUnknownProtocol):
		result = "unknown"
	case errors.Is(err, h02.ErrMalformed), errors.Is(err, h02.ErrEmptyFrame):
		result = "malformed"
	}
	s.g.countFrame(frameSubtype(frame), result)
	s.g.logger.Debug("frame rejected",
		zap.String("conn_id", s.cc.ID()),
		zap.ByteString("frame", frame),
		zap.Error(err))

	e := s.event(events.KindError)
	e.Context = "decode"
	e.Error = err.Error()
	s.g.publish(s.cc.Context(), e)
}

// fail 上报错误并返回 err，读循环随后断开连接
func (s *connSession) fail(where string, err error) error {
	if errors.Is(err, h02.ErrBufferOverflow) && s.g.metrics != nil {
		s.g.metrics.BufferOverflows.Inc()
	}
	e := s.event(events.KindError)
	e.Context = where
	e.Error = err.Error()
	s.g.publish(s.cc.Context(), e)
	return err
}

func (s *connSession) closed(reason error) {
	g := s.g
	if n := s.adapter.Buffered(); n > 0 {
		g.logger.Debug("partial frame dropped on close",
			zap.String("conn_id", s.cc.ID()),
			zap.Int("bytes", n))
	}
	removed := false
	for id, raw := range s.devices {
		if g.sessions.Unbind(id, s.cc.ID()) {
			removed = true
			g.decoder.Sessions().Forget(raw)
			g.encoder.Identities().Forget(id)
		}
	}
	if removed {
		g.updateOnline()
	}

	ctx := context.Background()
	if reason != nil && !expectedClose(reason) {
		e := s.event(events.KindError)
		e.Context = "transport"
		e.Error = reason.Error()
		g.publish(ctx, e)
	}
	g.publish(ctx, s.event(events.KindDisconnect))
}

// expectedClose 对端正常关闭、本端主动关闭、空闲超时以及已经上报过的缓冲溢出
func expectedClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, tcpserver.ErrIdleTimeout) ||
		errors.Is(err, h02.ErrBufferOverflow)
}

// frameSubtype 指标标签，解码失败时尽量从原始帧取子类型
func frameSubtype(frame []byte) string {
	if len(frame) == 0 {
		return "unknown"
	}
	if frame[0] != h02.MarkerText {
		return h02.SubtypeBinary.String()
	}
	fields := bytes.SplitN(bytes.TrimSuffix(frame, []byte("#")), []byte(","), 4)
	if len(fields) < 3 {
		return "unknown"
	}
	return h02.ParseSubtype(string(fields[2])).String()
}

func (g *Gateway) countFrame(subtype, result string) {
	if g.metrics != nil {
		g.metrics.FramesTotal.WithLabelValues(subtype, result).Inc()
	}
}
