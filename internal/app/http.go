package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/events"
	"github.com/taoyao-code/h02-server/internal/gateway"
	"github.com/taoyao-code/h02-server/internal/health"
	"github.com/taoyao-code/h02-server/internal/httpserver"
	"github.com/taoyao-code/h02-server/internal/metrics"
)

// NewHTTPServer 管理面：探针、指标、设备与指令接口、事件流
func NewHTTPServer(cfg *config.Config, reg *prometheus.Registry, agg *health.Aggregator,
	gw *gateway.Gateway, stream *events.Stream, logger *zap.Logger,
) *httpserver.Server {
	opts := httpserver.Options{Health: agg, Logger: logger}
	if gw != nil {
		opts.Gateway = gw
	}
	if stream != nil {
		opts.Stream = stream
	}
	if cfg.Metrics.Enable {
		opts.MetricsPath = cfg.Metrics.Path
		opts.Metrics = metrics.Handler(reg)
	}
	return httpserver.New(cfg.HTTP, opts)
}
