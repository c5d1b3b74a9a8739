package events

import (
	"errors"
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常投递
	BreakerOpen                         // 熔断中，直接丢弃
	BreakerHalfOpen                     // 试探投递
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrBreakerOpen 下游持续失败，事件被丢弃
	ErrBreakerOpen = errors.New("events: circuit breaker is open")
	// ErrBreakerProbing 半开状态试探名额已用完
	ErrBreakerProbing = errors.New("events: circuit breaker is probing")
)

// Breaker 保护事件总线发布：连续失败达到阈值后熔断，
// 超时后放行少量试探请求，试探成功则恢复。
type Breaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	successes    int
	probes       int
	trips        int64
	lastFailure  time.Time
	lastChange   time.Time
	threshold    int
	timeout      time.Duration
	probeLimit   int
	now          func() time.Time
	onTransition func(from, to BreakerState)
}

// NewBreaker threshold/timeout 非正时使用默认值 5 次 / 30 秒
func NewBreaker(threshold int, timeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &Breaker{
		threshold:  threshold,
		timeout:    timeout,
		probeLimit: 4,
		now:        time.Now,
	}
	b.lastChange = b.now()
	return b
}

// OnTransition 状态变化回调，在持锁之外异步执行
func (b *Breaker) OnTransition(fn func(from, to BreakerState)) {
	b.mu.Lock()
	b.onTransition = fn
	b.mu.Unlock()
}

// Call 在熔断保护下执行 fn
func (b *Breaker) Call(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.timeout {
			return ErrBreakerOpen
		}
		b.transition(BreakerHalfOpen)
		b.probes = 1
		return nil
	default:
		if b.probes >= b.probeLimit {
			return ErrBreakerProbing
		}
		b.probes++
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == BreakerHalfOpen || b.failures >= b.threshold {
			b.transition(BreakerOpen)
			b.trips++
		}
		return
	}

	b.successes++
	switch b.state {
	case BreakerHalfOpen:
		if b.successes >= b.probeLimit/2 {
			b.transition(BreakerClosed)
		}
	case BreakerClosed:
		// 连续失败才熔断
		b.failures = 0
	}
}

// transition 调用方持锁
func (b *Breaker) transition(to BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.lastChange = b.now()
	b.failures, b.successes = 0, 0
	if to != BreakerHalfOpen {
		b.probes = 0
	}
	if b.onTransition != nil {
		go b.onTransition(from, to)
	}
}

// State 当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复为 closed
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(BreakerClosed)
	b.failures, b.successes, b.probes = 0, 0, 0
}

// BreakerStats 熔断器统计
type BreakerStats struct {
	State      string    `json:"state"`
	Failures   int       `json:"failures"`
	Successes  int       `json:"successes"`
	Trips      int64     `json:"trips"`
	LastChange time.Time `json:"last_change"`
}

func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:      b.state.String(),
		Failures:   b.failures,
		Successes:  b.successes,
		Trips:      b.trips,
		LastChange: b.lastChange,
	}
}
