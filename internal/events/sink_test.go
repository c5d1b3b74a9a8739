package events

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/h02-server/internal/coremodel"
	"github.com/taoyao-code/h02-server/internal/metrics"
)

func TestNewEvent(t *testing.T) {
	e := New(KindConnect)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, KindConnect, e.Kind)
	assert.False(t, e.Time.IsZero())

	e2 := NewError("decode", errors.New("bad frame"))
	assert.Equal(t, KindError, e2.Kind)
	assert.Equal(t, "decode", e2.Context)
	assert.Equal(t, "bad frame", e2.Error)
	assert.NotEqual(t, e.ID, e2.ID)
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	pos := coremodel.NewPosition("h02")
	pos.DeviceID = "123456"
	pos.AddAlarm(coremodel.AlarmSOS)
	e := New(KindPosition)
	e.DeviceID = "123456"
	e.Position = pos
	require.NoError(t, sink.Publish(context.Background(), e))

	require.NoError(t, sink.Publish(context.Background(), NewError("write", errors.New("broken pipe"))))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "123456", entries[0].ContextMap()["device_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "broken pipe", entries[1].ContextMap()["error"])
}

func TestDispatcher(t *testing.T) {
	reg := prometheus.NewRegistry()
	appm := metrics.NewAppMetrics(reg)

	var got []Kind
	ok := SinkFunc(func(_ context.Context, e *Event) error {
		got = append(got, e.Kind)
		return nil
	})
	failing := SinkFunc(func(context.Context, *Event) error { return errors.New("down") })

	d := NewDispatcher(nil, appm, ok, nil)
	d.Add(failing)

	err := d.Publish(context.Background(), New(KindPosition))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, []Kind{KindPosition}, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(appm.EventsPublished.WithLabelValues("position", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(appm.EventsPublished.WithLabelValues("position", "error")))

	t.Run("nil事件忽略", func(t *testing.T) {
		assert.NoError(t, d.Publish(context.Background(), nil))
	})
	t.Run("无metrics", func(t *testing.T) {
		assert.NoError(t, NewDispatcher(nil, nil, ok).Publish(context.Background(), New(KindStarted)))
	})
}
