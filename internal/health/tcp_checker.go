package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/h02-server/internal/tcpserver"
)

// TCPServer 检查所需的 tcpserver.Server 子集
type TCPServer interface {
	Listening() bool
	Stats() tcpserver.AdmissionStats
}

// TCPChecker 设备接入端口检查：未监听为 unhealthy，连接占用过高依次降级
type TCPChecker struct {
	server TCPServer
}

func NewTCPChecker(server TCPServer) *TCPChecker {
	return &TCPChecker{server: server}
}

func (c *TCPChecker) Name() string { return "tcp" }

func (c *TCPChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	if !c.server.Listening() {
		return CheckResult{Status: StatusUnhealthy, Message: "not listening", Latency: time.Since(start)}
	}

	stats := c.server.Stats()
	status, message := StatusHealthy, "ok"
	switch {
	case stats.Utilization > 0.95:
		status, message = StatusUnhealthy, "connection limit near exhausted"
	case stats.Utilization > 0.8:
		status, message = StatusDegraded, "high connection usage"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"active_connections": stats.ActiveConnections,
			"max_connections":    stats.MaxConnections,
			"rejected_rate":      stats.RejectedRate,
			"rejected_limit":     stats.RejectedLimit,
			"utilization":        fmt.Sprintf("%.1f%%", stats.Utilization*100),
		},
		Latency: time.Since(start),
	}
}
