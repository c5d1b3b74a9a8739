package tcpserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited 建连速率超限
	ErrRateLimited = errors.New("tcpserver: accept rate exceeded")
	// ErrConnectionLimit 并发连接数已满
	ErrConnectionLimit = errors.New("tcpserver: connection limit reached")
)

// Admission 接入控制：先过令牌桶（建连速率），再占并发名额（信号量）
type Admission struct {
	limiter *rate.Limiter // nil 表示不限速
	slots   chan struct{}
	wait    time.Duration

	active        atomic.Int64
	allowed       atomic.Int64
	rejectedRate  atomic.Int64
	rejectedLimit atomic.Int64
}

// NewAdmission maxConn<=0 时为 10000；ratePerSec<=0 时不限速，burst<=0 时取 2 倍速率；
// wait 为并发名额的最长等待时间。
func NewAdmission(maxConn int, wait time.Duration, ratePerSec, burst int) *Admission {
	if maxConn <= 0 {
		maxConn = 10000
	}
	if wait <= 0 {
		wait = time.Second
	}
	a := &Admission{slots: make(chan struct{}, maxConn), wait: wait}
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = ratePerSec * 2
		}
		a.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return a
}

// Admit 成功后必须调用 Release
func (a *Admission) Admit(ctx context.Context) error {
	if a.limiter != nil && !a.limiter.Allow() {
		a.rejectedRate.Add(1)
		return ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, a.wait)
	defer cancel()
	select {
	case a.slots <- struct{}{}:
		a.active.Add(1)
		a.allowed.Add(1)
		return nil
	case <-ctx.Done():
		a.rejectedLimit.Add(1)
		return fmt.Errorf("%w: max=%d", ErrConnectionLimit, cap(a.slots))
	}
}

// Release 归还并发名额
func (a *Admission) Release() {
	select {
	case <-a.slots:
		a.active.Add(-1)
	default:
	}
}

// Active 当前占用的名额
func (a *Admission) Active() int { return int(a.active.Load()) }

// AdmissionStats 接入统计
type AdmissionStats struct {
	MaxConnections    int     `json:"max_connections"`
	ActiveConnections int     `json:"active_connections"`
	AllowedTotal      int64   `json:"allowed_total"`
	RejectedRate      int64   `json:"rejected_rate"`
	RejectedLimit     int64   `json:"rejected_limit"`
	Utilization       float64 `json:"utilization"` // 0.0 - 1.0
}

func (a *Admission) Stats() AdmissionStats {
	active := a.Active()
	return AdmissionStats{
		MaxConnections:    cap(a.slots),
		ActiveConnections: active,
		AllowedTotal:      a.allowed.Load(),
		RejectedRate:      a.rejectedRate.Load(),
		RejectedLimit:     a.rejectedLimit.Load(),
		Utilization:       float64(active) / float64(cap(a.slots)),
	}
}
