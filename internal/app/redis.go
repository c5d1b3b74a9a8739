package app

import (
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
	"github.com/taoyao-code/h02-server/internal/protocol/h02"
	redisstorage "github.com/taoyao-code/h02-server/internal/storage/redis"
)

// NewRedisClient 未启用时返回 nil, nil
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, device ids pass through unchanged")
		return nil, nil
	}

	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize),
		zap.String("identity_key", cfg.IdentityKey))
	return client, nil
}

// NewIdentityResolvers 上行与下行两个方向的身份解析器。client 为 nil 时都为 nil，即原样透传
func NewIdentityResolvers(client *redisstorage.Client, cfg config.RedisConfig) (uplink, downlink h02.Resolver) {
	if client == nil {
		return nil, nil
	}
	r := redisstorage.NewIdentityResolver(client, cfg.IdentityKey, cfg.RejectUnknown)
	return r, r.Wire()
}
