package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPinger 检查所需的 Redis 客户端子集
type RedisPinger interface {
	HealthCheck(ctx context.Context) error
	PoolStats() *redis.PoolStats
}

// RedisChecker 设备身份库检查。Redis 不可用时所有新设备无法解析，视为 unhealthy。
type RedisChecker struct {
	client RedisPinger
}

func NewRedisChecker(client RedisPinger) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string { return "redis" }

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.client.HealthCheck(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}

	stats := c.client.PoolStats()
	utilization := 0.0
	if stats.TotalConns > 0 {
		utilization = float64(stats.TotalConns-stats.IdleConns) / float64(stats.TotalConns)
	}
	status, message := StatusHealthy, "ok"
	if utilization > 0.9 {
		status, message = StatusDegraded, "connection pool near limit"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"total_conns": stats.TotalConns,
			"idle_conns":  stats.IdleConns,
			"hits":        stats.Hits,
			"misses":      stats.Misses,
			"timeouts":    stats.Timeouts,
			"utilization": fmt.Sprintf("%.1f%%", utilization*100),
		},
		Latency: time.Since(start),
	}
}
