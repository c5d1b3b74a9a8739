package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/coremodel"
)

// Connect 按配置连接 NATS，断线与重连写日志
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Publisher *nats.Conn 的发布子集
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink 事件以 JSON 发布到 <prefix>.<kind>，由熔断器保护
type NATSSink struct {
	pub     Publisher
	prefix  string
	breaker *Breaker
	logger  *zap.Logger
}

// NewNATSSink breaker 为 nil 时使用默认参数
func NewNATSSink(pub Publisher, prefix string, breaker *Breaker, logger *zap.Logger) *NATSSink {
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NATSSink{pub: pub, prefix: strings.TrimSuffix(prefix, "."), breaker: breaker, logger: logger}
	breaker.OnTransition(func(from, to BreakerState) {
		s.logger.Warn("nats sink breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
	return s
}

// Subject 事件对应的主题
func (s *NATSSink) Subject(kind Kind) string {
	if s.prefix == "" {
		return string(kind)
	}
	return s.prefix + "." + string(kind)
}

// Breaker 暴露熔断器（健康检查用）
func (s *NATSSink) Breaker() *Breaker { return s.breaker }

func (s *NATSSink) Publish(_ context.Context, e *Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", e.Kind, err)
	}
	subject := s.Subject(e.Kind)
	if err := s.breaker.Call(func() error { return s.pub.Publish(subject, data) }); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// CommandSender 下行指令的执行方（网关）
type CommandSender interface {
	SendCommand(ctx context.Context, cmd *coremodel.Command) error
}

// Subscriber *nats.Conn 的订阅子集
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// CommandReply 请求-应答模式下回给调用方的结果
type CommandReply struct {
	Status   string `json:"status"`
	DeviceID string `json:"device_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// CommandSubscriber 订阅下行主题，消息体为
// {"device_id":"...","type":"engineStop","params":{...}}。
// device_id 为空时取主题最后一段。
type CommandSubscriber struct {
	conn    Subscriber
	subject string
	sender  CommandSender
	timeout time.Duration
	logger  *zap.Logger
	sub     *nats.Subscription
}

func NewCommandSubscriber(conn Subscriber, subject string, sender CommandSender, logger *zap.Logger) *CommandSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandSubscriber{
		conn:    conn,
		subject: subject,
		sender:  sender,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

// Start 开始订阅
func (s *CommandSubscriber) Start() error {
	sub, err := s.conn.Subscribe(s.subject, s.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info("downlink subscriber started", zap.String("subject", s.subject))
	return nil
}

// Stop 取消订阅
func (s *CommandSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	err := s.sub.Unsubscribe()
	s.sub = nil
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return err
	}
	return nil
}

func (s *CommandSubscriber) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	reply := s.process(ctx, msg.Subject, msg.Data)
	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(reply)
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("reply downlink command failed", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func (s *CommandSubscriber) process(ctx context.Context, subject string, data []byte) CommandReply {
	var cmd coremodel.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		s.logger.Warn("invalid downlink command", zap.String("subject", subject), zap.Error(err))
		return CommandReply{Status: "error", Error: "invalid command: " + err.Error()}
	}
	if cmd.DeviceID == "" {
		if i := strings.LastIndexByte(subject, '.'); i >= 0 && i < len(subject)-1 {
			cmd.DeviceID = subject[i+1:]
		}
	}
	if cmd.DeviceID == "" || cmd.Type == "" {
		return CommandReply{Status: "error", DeviceID: cmd.DeviceID, Error: "device_id and type are required"}
	}

	if err := s.sender.SendCommand(ctx, &cmd); err != nil {
		s.logger.Warn("downlink command failed",
			zap.String("device_id", cmd.DeviceID),
			zap.String("type", string(cmd.Type)),
			zap.Error(err))
		return CommandReply{Status: "error", DeviceID: cmd.DeviceID, Error: err.Error()}
	}
	return CommandReply{Status: "sent", DeviceID: cmd.DeviceID}
}
