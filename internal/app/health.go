package app

import (
	"github.com/taoyao-code/h02-server/internal/health"
	redisstorage "github.com/taoyao-code/h02-server/internal/storage/redis"
	"github.com/taoyao-code/h02-server/internal/tcpserver"
)

// NewHealthAggregator TCP 检查器总是注册，Redis 与 NATS 按启用情况添加
func NewHealthAggregator(tcpServer *tcpserver.Server, redisClient *redisstorage.Client, nb *NATSBundle) *health.Aggregator {
	agg := health.NewAggregator(health.NewTCPChecker(tcpServer))
	if redisClient != nil {
		agg.AddChecker(health.NewRedisChecker(redisClient))
	}
	if nb != nil {
		agg.AddChecker(health.NewNATSChecker(nb.Conn, nb.Breaker))
	}
	return agg
}
