package app

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/gateway"
	"github.com/taoyao-code/h02-server/internal/metrics"
	"github.com/taoyao-code/h02-server/internal/tcpserver"
)

// NewTCPServer 创建 TCP 服务器，挂上网关连接处理与接入指标
func NewTCPServer(cfg config.TCPConfig, gw *gateway.Gateway, appm *metrics.AppMetrics, logger *zap.Logger) *tcpserver.Server {
	srv := tcpserver.New(cfg, logger)
	srv.SetHandler(gw.HandleConn)
	if appm != nil {
		srv.SetMetricsCallbacks(
			func() { appm.TCPAccepted.Inc() },
			func(reason string) { appm.TCPRejected.WithLabelValues(reason).Inc() },
			func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
		)
	}
	return srv
}
