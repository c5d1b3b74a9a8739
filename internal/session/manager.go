package session

import (
	"net"
	"sort"
	"sync"
	"time"
)

// Conn 可下发数据的连接句柄
type Conn interface {
	ID() string
	RemoteAddr() net.Addr
	Write(p []byte) error
}

type binding struct {
	conn     Conn
	since    time.Time
	lastSeen time.Time
}

// Manager 设备 -> 连接 路由表。
// 每个设备同一时刻最多绑定一个连接，新连接覆盖旧连接（旧连接不会被关闭）。
type Manager struct {
	mu    sync.RWMutex
	conns map[string]*binding
	now   func() time.Time
}

func New() *Manager {
	return &Manager{conns: make(map[string]*binding), now: time.Now}
}

// Bind 绑定设备到连接。
// 同一连接重复绑定只刷新最近活跃时间；返回值 replaced 为被覆盖的旧连接。
func (m *Manager) Bind(deviceID string, conn Conn) (replaced Conn, created bool) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.conns[deviceID]; ok {
		if b.conn.ID() == conn.ID() {
			b.lastSeen = now
			return nil, false
		}
		replaced = b.conn
	}
	m.conns[deviceID] = &binding{conn: conn, since: now, lastSeen: now}
	return replaced, true
}

// Unbind 仅当设备仍绑定在 connID 上时解除，避免旧连接关闭时误删新绑定
func (m *Manager) Unbind(deviceID, connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.conns[deviceID]
	if !ok || b.conn.ID() != connID {
		return false
	}
	delete(m.conns, deviceID)
	return true
}

// Get 返回设备当前绑定的连接
func (m *Manager) Get(deviceID string) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.conns[deviceID]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// DeviceInfo 路由表快照中的一项
type DeviceInfo struct {
	DeviceID   string    `json:"device_id"`
	ConnID     string    `json:"conn_id"`
	RemoteAddr string    `json:"remote_addr"`
	Since      time.Time `json:"since"`
	LastSeen   time.Time `json:"last_seen"`
}

// Devices 按设备ID排序的快照
func (m *Manager) Devices() []DeviceInfo {
	m.mu.RLock()
	out := make([]DeviceInfo, 0, len(m.conns))
	for id, b := range m.conns {
		info := DeviceInfo{DeviceID: id, ConnID: b.conn.ID(), Since: b.since, LastSeen: b.lastSeen}
		if addr := b.conn.RemoteAddr(); addr != nil {
			info.RemoteAddr = addr.String()
		}
		out = append(out, info)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Count 已绑定设备数
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Clear 清空路由表
func (m *Manager) Clear() {
	m.mu.Lock()
	m.conns = make(map[string]*binding)
	m.mu.Unlock()
}
