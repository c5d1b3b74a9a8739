package redis

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
)

// HashGetter *redis.Client 的 HGET 子集
type HashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

// IdentityResolver 通过 Redis hash 把线路上的原始标识映射为设备ID：
//
//	<key>        原始标识 -> 设备ID（上行解码）
//	<key>:wire   设备ID -> 原始标识（下行编码）
//
// 上行未登记时按 rejectUnknown 决定拒绝或透传；下行未登记时总是透传。
type IdentityResolver struct {
	rdb           HashGetter
	key           string
	rejectUnknown bool
}

func NewIdentityResolver(rdb HashGetter, key string, rejectUnknown bool) *IdentityResolver {
	return &IdentityResolver{rdb: rdb, key: key, rejectUnknown: rejectUnknown}
}

// Resolve 上行方向，满足 h02.Resolver
func (r *IdentityResolver) Resolve(ctx context.Context, rawID string, _ net.Addr) (string, bool, error) {
	id, err := r.rdb.HGet(ctx, r.key, rawID).Result()
	switch {
	case err == nil && id != "":
		return id, true, nil
	case err == nil || errors.Is(err, redis.Nil):
		if r.rejectUnknown {
			return "", false, nil
		}
		return rawID, true, nil
	default:
		return "", false, fmt.Errorf("hget %s %s: %w", r.key, rawID, err)
	}
}

// Wire 下行方向的解析器，交给 h02.NewEncoder
func (r *IdentityResolver) Wire() *WireResolver {
	return &WireResolver{rdb: r.rdb, key: r.key + ":wire"}
}

// WireResolver 设备ID -> 原始标识
type WireResolver struct {
	rdb HashGetter
	key string
}

func (w *WireResolver) Resolve(ctx context.Context, deviceID string, _ net.Addr) (string, bool, error) {
	raw, err := w.rdb.HGet(ctx, w.key, deviceID).Result()
	switch {
	case err == nil && raw != "":
		return raw, true, nil
	case err == nil || errors.Is(err, redis.Nil):
		return deviceID, true, nil
	default:
		return "", false, fmt.Errorf("hget %s %s: %w", w.key, deviceID, err)
	}
}
