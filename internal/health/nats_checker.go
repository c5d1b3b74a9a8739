package health

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/taoyao-code/h02-server/internal/events"
)

// NATSStatus *nats.Conn 的状态子集
type NATSStatus interface {
	Status() nats.Status
}

// NATSChecker 事件总线检查。总线故障不影响设备接入，最多降级。
type NATSChecker struct {
	conn    NATSStatus
	breaker *events.Breaker
}

// NewNATSChecker breaker 可为 nil
func NewNATSChecker(conn NATSStatus, breaker *events.Breaker) *NATSChecker {
	return &NATSChecker{conn: conn, breaker: breaker}
}

func (c *NATSChecker) Name() string { return "nats" }

func (c *NATSChecker) Check(_ context.Context) CheckResult {
	start := time.Now()
	state := c.conn.Status()
	details := map[string]any{"connection": state.String()}

	status, message := StatusHealthy, "ok"
	if state != nats.CONNECTED {
		status, message = StatusDegraded, "not connected"
	}
	if c.breaker != nil {
		stats := c.breaker.Stats()
		details["breaker_state"] = stats.State
		details["breaker_trips"] = stats.Trips
		if c.breaker.State() == events.BreakerOpen {
			status, message = StatusDegraded, "publish circuit open"
		}
	}

	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
