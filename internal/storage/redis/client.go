package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/h02-server/internal/config"
)

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// Client Redis 客户端封装
type Client struct {
	*redis.Client
}

// NewClient 创建客户端并 Ping 一次
func NewClient(cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{Client: rdb}, nil
}

// HealthCheck 供健康检查使用
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
