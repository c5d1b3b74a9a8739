package app

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/events"
	"github.com/taoyao-code/h02-server/internal/gateway"
	"github.com/taoyao-code/h02-server/internal/metrics"
	"github.com/taoyao-code/h02-server/internal/protocol/h02"
	"github.com/taoyao-code/h02-server/internal/session"
)

// NewGateway 构造编解码器、设备会话表与网关。uplink/downlink 为 nil 时设备标识原样透传
func NewGateway(cfg *config.Config, instance string, uplink, downlink h02.Resolver,
	sink events.Sink, appm *metrics.AppMetrics, logger *zap.Logger,
) (*gateway.Gateway, *session.Manager) {
	sessions := session.New()
	gw := gateway.New(gateway.Options{
		MessageLength: cfg.H02.MessageLength,
		Acknowledge:   cfg.H02.Acknowledge,
		MaxBuffer:     cfg.TCP.MaxBufferSize,
		Instance:      instance,
	},
		h02.NewDecoder(uplink),
		h02.NewEncoder(h02.Options(cfg.H02.OptionMap()), downlink),
		sessions, sink, appm, logger,
	)

	logger.Info("gateway initialized",
		zap.String("instance", instance),
		zap.Int("message_length", cfg.H02.MessageLength),
		zap.Bool("acknowledge", cfg.H02.Acknowledge),
		zap.Bool("identity_mapping", uplink != nil))
	return gw, sessions
}
