package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, timeout time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	b := NewBreaker(threshold, timeout)
	b.now = clock.now
	return b, clock
}

var errDown = errors.New("down")

func fail() error    { return errDown }
func succeed() error { return nil }

func TestBreaker(t *testing.T) {
	t.Run("状态转换", func(t *testing.T) {
		b, clock := newTestBreaker(3, time.Second)
		assert.Equal(t, BreakerClosed, b.State())

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, b.Call(fail), errDown)
		}
		assert.Equal(t, BreakerOpen, b.State())

		called := false
		err := b.Call(func() error { called = true; return nil })
		assert.ErrorIs(t, err, ErrBreakerOpen)
		assert.False(t, called)

		clock.advance(2 * time.Second)
		require.NoError(t, b.Call(succeed))
		assert.Equal(t, BreakerHalfOpen, b.State())

		require.NoError(t, b.Call(succeed))
		assert.Equal(t, BreakerClosed, b.State())
	})

	t.Run("成功打断连续失败", func(t *testing.T) {
		b, _ := newTestBreaker(2, time.Second)
		_ = b.Call(fail)
		_ = b.Call(succeed)
		_ = b.Call(fail)
		assert.Equal(t, BreakerClosed, b.State())
		_ = b.Call(fail)
		assert.Equal(t, BreakerOpen, b.State())
	})

	t.Run("半开失败立即熔断", func(t *testing.T) {
		b, clock := newTestBreaker(2, time.Second)
		_ = b.Call(fail)
		_ = b.Call(fail)
		clock.advance(2 * time.Second)

		assert.ErrorIs(t, b.Call(fail), errDown)
		assert.Equal(t, BreakerOpen, b.State())
		assert.Equal(t, int64(2), b.Stats().Trips)
		assert.ErrorIs(t, b.Call(succeed), ErrBreakerOpen)
	})

	t.Run("半开试探名额", func(t *testing.T) {
		b, clock := newTestBreaker(1, time.Second)
		_ = b.Call(fail)
		clock.advance(2 * time.Second)

		// 试探请求尚未返回结果时占用名额
		for i := 0; i < b.probeLimit; i++ {
			require.NoError(t, b.admit())
		}
		assert.ErrorIs(t, b.admit(), ErrBreakerProbing)
		assert.Equal(t, BreakerHalfOpen, b.State())
	})

	t.Run("统计与重置", func(t *testing.T) {
		b, _ := newTestBreaker(5, time.Second)
		for i := 0; i < 3; i++ {
			_ = b.Call(fail)
		}
		stats := b.Stats()
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, 3, stats.Failures)

		b.Reset()
		assert.Equal(t, 0, b.Stats().Failures)
		assert.Equal(t, BreakerClosed, b.State())
	})

	t.Run("状态变化回调", func(t *testing.T) {
		b, _ := newTestBreaker(1, time.Second)
		ch := make(chan [2]BreakerState, 1)
		b.OnTransition(func(from, to BreakerState) { ch <- [2]BreakerState{from, to} })

		_ = b.Call(fail)
		select {
		case got := <-ch:
			assert.Equal(t, [2]BreakerState{BreakerClosed, BreakerOpen}, got)
		case <-time.After(time.Second):
			t.Fatal("回调未触发")
		}
	})
}

func TestBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half_open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}
