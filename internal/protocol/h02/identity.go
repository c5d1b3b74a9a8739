package h02

import (
	"context"
	"net"
	"sync"
)

// Resolver 将线路上的原始设备标识映射为规范设备ID。
// ok=false 表示设备未知，对应帧将被拒绝。
type Resolver interface {
	Resolve(ctx context.Context, rawID string, remote net.Addr) (deviceID string, ok bool, err error)
}

// ResolverFunc 函数适配
type ResolverFunc func(ctx context.Context, rawID string, remote net.Addr) (string, bool, error)

func (f ResolverFunc) Resolve(ctx context.Context, rawID string, remote net.Addr) (string, bool, error) {
	return f(ctx, rawID, remote)
}

// DeviceSessions 原始标识 -> 规范ID 的缓存表。
// 首次见到的标识交给上游 Resolver（默认原样透传），结果缓存到实例生命周期结束。
type DeviceSessions struct {
	mu       sync.RWMutex
	ids      map[string]string
	upstream Resolver
}

// NewDeviceSessions upstream 为 nil 时使用原样透传
func NewDeviceSessions(upstream Resolver) *DeviceSessions {
	return &DeviceSessions{ids: make(map[string]string), upstream: upstream}
}

// Resolve 实现 Resolver
func (s *DeviceSessions) Resolve(ctx context.Context, rawID string, remote net.Addr) (string, bool, error) {
	if rawID == "" {
		return "", false, nil
	}
	s.mu.RLock()
	id, ok := s.ids[rawID]
	s.mu.RUnlock()
	if ok {
		return id, true, nil
	}

	id = rawID
	if s.upstream != nil {
		resolved, found, err := s.upstream.Resolve(ctx, rawID, remote)
		if err != nil || !found {
			return "", found, err
		}
		id = resolved
	}

	s.mu.Lock()
	if existing, ok := s.ids[rawID]; ok {
		id = existing
	} else {
		s.ids[rawID] = id
	}
	s.mu.Unlock()
	return id, true, nil
}

// Forget 移除缓存项，下次出现时重新解析
func (s *DeviceSessions) Forget(rawID string) {
	s.mu.Lock()
	delete(s.ids, rawID)
	s.mu.Unlock()
}

// Len 缓存条目数
func (s *DeviceSessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
