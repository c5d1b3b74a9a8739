package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/metrics"
)

// Sink 事件接收方。Publish 不应长时间阻塞调用方（连接读循环）。
type Sink interface {
	Publish(ctx context.Context, e *Event) error
}

// SinkFunc 函数适配
type SinkFunc func(ctx context.Context, e *Event) error

func (f SinkFunc) Publish(ctx context.Context, e *Event) error { return f(ctx, e) }

// LogSink 将事件写入 zap 日志
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, e *Event) error {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("kind", string(e.Kind)),
	}
	if e.ConnID != "" {
		fields = append(fields, zap.String("conn_id", e.ConnID))
	}
	if e.RemoteAddr != "" {
		fields = append(fields, zap.String("remote", e.RemoteAddr))
	}
	if e.DeviceID != "" {
		fields = append(fields, zap.String("device_id", e.DeviceID))
	}
	if p := e.Position; p != nil {
		fields = append(fields,
			zap.Time("fix_time", p.Time),
			zap.Bool("valid", p.Valid),
			zap.Float64("lat", p.Latitude),
			zap.Float64("lon", p.Longitude),
			zap.Float64("speed", p.Speed),
		)
		if alarms := p.Alarms(); len(alarms) > 0 {
			fields = append(fields, zap.Strings("alarms", alarms))
		}
	}
	if e.Command != nil {
		fields = append(fields, zap.String("command", string(e.Command.Type)))
	}

	switch e.Kind {
	case KindError:
		fields = append(fields, zap.String("context", e.Context), zap.String("error", e.Error))
		s.logger.Warn("gateway event", fields...)
	case KindPosition:
		s.logger.Debug("gateway event", fields...)
	default:
		s.logger.Info("gateway event", fields...)
	}
	return nil
}

// Dispatcher 将事件依次投递给所有 sink，单个 sink 失败不影响其余 sink
type Dispatcher struct {
	sinks   []Sink
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewDispatcher appm 可为 nil
func NewDispatcher(logger *zap.Logger, appm *metrics.AppMetrics, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{metrics: appm, logger: logger}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Add 追加 sink，只能在开始投递前调用
func (d *Dispatcher) Add(s Sink) {
	if s != nil {
		d.sinks = append(d.sinks, s)
	}
}

// Publish 返回所有失败 sink 的合并错误
func (d *Dispatcher) Publish(ctx context.Context, e *Event) error {
	if e == nil {
		return nil
	}
	var errs []error
	for _, s := range d.sinks {
		err := s.Publish(ctx, e)
		result := "ok"
		if err != nil {
			result = "error"
			errs = append(errs, err)
			d.logger.Warn("publish event failed",
				zap.String("kind", string(e.Kind)),
				zap.String("event_id", e.ID),
				zap.Error(err))
		}
		if d.metrics != nil {
			d.metrics.EventsPublished.WithLabelValues(string(e.Kind), result).Inc()
		}
	}
	return errors.Join(errs...)
}
