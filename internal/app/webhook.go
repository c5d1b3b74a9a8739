package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/events"
)

// StartWebhook 未启用时返回 nil。worker 随 ctx 退出
func StartWebhook(ctx context.Context, cfg config.WebhookConfig, logger *zap.Logger) *events.WebhookSink {
	if !cfg.Enabled {
		return nil
	}
	s := events.NewWebhookSink(cfg, nil, logger)
	s.Start(ctx)
	return s
}
