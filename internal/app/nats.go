package app

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/events"
)

// NATSBundle NATS 连接及其上的事件发布
type NATSBundle struct {
	Conn    *nats.Conn
	Sink    *events.NATSSink
	Breaker *events.Breaker
}

// NewNATS 未启用时返回 nil, nil
func NewNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATSBundle, error) {
	if !cfg.Enabled {
		logger.Info("nats is disabled, events stay local")
		return nil, nil
	}

	nc, err := events.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	breaker := events.NewBreaker(cfg.Breaker.Threshold, cfg.Breaker.Timeout)
	breaker.OnTransition(func(from, to events.BreakerState) {
		logger.Warn("nats publish breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})

	logger.Info("nats connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("subject_prefix", cfg.SubjectPrefix))
	return &NATSBundle{
		Conn:    nc,
		Sink:    events.NewNATSSink(nc, cfg.SubjectPrefix, breaker, logger),
		Breaker: breaker,
	}, nil
}

// StartCommandSubscriber 订阅下行指令主题
func (b *NATSBundle) StartCommandSubscriber(subject string, sender events.CommandSender, logger *zap.Logger) (*events.CommandSubscriber, error) {
	sub := events.NewCommandSubscriber(b.Conn, subject, sender, logger)
	if err := sub.Start(); err != nil {
		return nil, err
	}
	logger.Info("nats command subscriber started", zap.String("subject", subject))
	return sub, nil
}

// Close 排空后关闭连接
func (b *NATSBundle) Close() {
	if err := b.Conn.Drain(); err != nil {
		b.Conn.Close()
	}
}
