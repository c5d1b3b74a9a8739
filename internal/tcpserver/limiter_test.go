package tcpserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmission(t *testing.T) {
	t.Run("并发名额", func(t *testing.T) {
		a := NewAdmission(3, 50*time.Millisecond, 0, 0)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, a.Admit(ctx), "第%d次", i+1)
		}

		err := a.Admit(ctx)
		assert.ErrorIs(t, err, ErrConnectionLimit)

		a.Release()
		assert.NoError(t, a.Admit(ctx))
		assert.Equal(t, 3, a.Active())
	})

	t.Run("建连速率", func(t *testing.T) {
		a := NewAdmission(100, time.Second, 10, 5)
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			require.NoError(t, a.Admit(ctx), "突发第%d个", i+1)
		}
		assert.ErrorIs(t, a.Admit(ctx), ErrRateLimited)

		time.Sleep(150 * time.Millisecond)
		assert.NoError(t, a.Admit(ctx))
	})

	t.Run("统计", func(t *testing.T) {
		a := NewAdmission(10, 10*time.Millisecond, 0, 0)
		for i := 0; i < 5; i++ {
			_ = a.Admit(context.Background())
		}
		stats := a.Stats()
		assert.Equal(t, 10, stats.MaxConnections)
		assert.Equal(t, 5, stats.ActiveConnections)
		assert.Equal(t, int64(5), stats.AllowedTotal)
		assert.InDelta(t, 0.5, stats.Utilization, 1e-9)
	})

	t.Run("多余的释放", func(t *testing.T) {
		a := NewAdmission(1, 10*time.Millisecond, 0, 0)
		a.Release()
		assert.Equal(t, 0, a.Active())
	})
}
