package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 网关业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=rate|limit
	TCPBytesReceived prometheus.Counter
	FramesTotal      *prometheus.CounterVec // labels: subtype, result=ok|unknown|malformed|error
	AcksTotal        *prometheus.CounterVec // labels: result=ok|error
	CommandsTotal    *prometheus.CounterVec // labels: type, result=ok|not_connected|encode_error|write_error
	BufferOverflows  prometheus.Counter
	OnlineGauge      prometheus.Gauge       // 当前绑定的设备数
	EventsPublished  *prometheus.CounterVec // labels: kind, result=ok|error
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcp_reject_total",
			Help: "TCP connections rejected by admission control.",
		}, []string{"reason"}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h02_frames_total",
			Help: "H02 frames decoded by subtype and result.",
		}, []string{"subtype", "result"}),
		AcksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h02_acks_total",
			Help: "Acknowledgements written back to devices.",
		}, []string{"result"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "h02_commands_total",
			Help: "Downlink commands by type and result.",
		}, []string{"type", "result"}),
		BufferOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "h02_buffer_overflow_total",
			Help: "Connections whose receive buffer exceeded the limit.",
		}),
		OnlineGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "session_online_count",
			Help: "Current number of devices bound to a connection.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Gateway events delivered to sinks by kind and result.",
		}, []string{"kind", "result"}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPRejected, m.TCPBytesReceived, m.FramesTotal, m.AcksTotal,
		m.CommandsTotal, m.BufferOverflows, m.OnlineGauge, m.EventsPublished,
	)
	return m
}
