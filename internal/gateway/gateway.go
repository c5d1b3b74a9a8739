package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/coremodel"
	"github.com/taoyao-code/h02-server/internal/events"
	"github.com/taoyao-code/h02-server/internal/metrics"
	"github.com/taoyao-code/h02-server/internal/protocol/h02"
	"github.com/taoyao-code/h02-server/internal/session"
)

var (
	ErrDeviceNotConnected = errors.New("gateway: device not connected")
	ErrEncodingFailed     = errors.New("gateway: command encoding failed")
)

// Options 会话层配置
type Options struct {
	// MessageLength 二进制帧长，0 为自动识别
	MessageLength int
	Acknowledge   bool
	// MaxBuffer 单连接未成帧数据上限，超过后断开
	MaxBuffer int
	// Instance 网关实例标识，写入每个事件
	Instance string
}

// Gateway H02 连接会话管理：解码上行、维护设备路由、应答、下发指令
type Gateway struct {
	opts     Options
	decoder  *h02.Decoder
	encoder  *h02.Encoder
	sessions *session.Manager
	sink     events.Sink
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// New sink、appm 可为 nil
func New(opts Options, decoder *h02.Decoder, encoder *h02.Encoder, sessions *session.Manager,
	sink events.Sink, appm *metrics.AppMetrics, logger *zap.Logger,
) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NewLogSink(logger)
	}
	return &Gateway{
		opts:     opts,
		decoder:  decoder,
		encoder:  encoder,
		sessions: sessions,
		sink:     sink,
		metrics:  appm,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Started 监听成功后调用
func (g *Gateway) Started(ctx context.Context, listen string) {
	e := events.New(events.KindStarted)
	e.Listen = listen
	g.publish(ctx, e)
}

// Shutdown 清空路由表。连接由传输层关闭。
func (g *Gateway) Shutdown(ctx context.Context) {
	g.sessions.Clear()
	g.updateOnline()
	g.publish(ctx, events.New(events.KindStopped))
}

// Devices 在线设备快照
func (g *Gateway) Devices() []session.DeviceInfo { return g.sessions.Devices() }

// Online 设备是否在线
func (g *Gateway) Online(deviceID string) bool {
	_, ok := g.sessions.Get(deviceID)
	return ok
}

// SendCommand 查路由、编码、写入连接。写入成功不代表设备已收到。
func (g *Gateway) SendCommand(ctx context.Context, cmd *coremodel.Command) error {
	if cmd == nil {
		return fmt.Errorf("%w: nil command", ErrEncodingFailed)
	}
	conn, ok := g.sessions.Get(cmd.DeviceID)
	if !ok {
		g.countCommand(cmd, "not_connected")
		return fmt.Errorf("%w: %s", ErrDeviceNotConnected, cmd.DeviceID)
	}

	data, err := g.encoder.Encode(ctx, cmd)
	if err != nil {
		g.countCommand(cmd, "encode_error")
		return fmt.Errorf("%w: %w", ErrEncodingFailed, err)
	}

	if err := conn.Write(data); err != nil {
		g.countCommand(cmd, "write_error")
		e := events.NewError("command", err)
		e.DeviceID = cmd.DeviceID
		e.ConnID = conn.ID()
		e.Command = cmd
		g.publish(ctx, e)
		return fmt.Errorf("write command to %s: %w", cmd.DeviceID, err)
	}

	g.countCommand(cmd, "ok")
	e := events.New(events.KindCommandSent)
	e.DeviceID = cmd.DeviceID
	e.ConnID = conn.ID()
	e.Command = cmd
	g.publish(ctx, e)
	return nil
}

func (g *Gateway) publish(ctx context.Context, e *events.Event) {
	e.Instance = g.opts.Instance
	if err := g.sink.Publish(ctx, e); err != nil {
		g.logger.Debug("event not delivered", zap.String("kind", string(e.Kind)), zap.Error(err))
	}
}

func (g *Gateway) countCommand(cmd *coremodel.Command, result string) {
	if g.metrics != nil {
		g.metrics.CommandsTotal.WithLabelValues(string(cmd.Type), result).Inc()
	}
}

func (g *Gateway) updateOnline() {
	if g.metrics != nil {
		g.metrics.OnlineGauge.Set(float64(g.sessions.Count()))
	}
}
