package prometheus

import (
	"time"

	"github.com/marmos91/dittochat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// chatMetrics is the Prometheus implementation of metrics.ChatMetrics.
type chatMetrics struct {
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	connectionsClosed   prometheus.Counter
	activeSessions      prometheus.Gauge
	logins              prometheus.Counter
	evictions           prometheus.Counter
	broadcasts          prometheus.Counter
	recipients          prometheus.Counter
	deliveryFailures    prometheus.Counter
	commands            *prometheus.CounterVec
	tickDuration        prometheus.Histogram
}

// NewChatMetrics creates a new Prometheus-backed ChatMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewChatMetrics() metrics.ChatMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopChatMetrics()
	}

	return newChatMetrics(metrics.GetRegistry())
}

func newChatMetrics(reg prometheus.Registerer) *chatMetrics {
	return &chatMetrics{
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_connections_accepted_total",
				Help: "Total number of connections admitted to the chatroom",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_connections_rejected_total",
				Help: "Total number of connections rejected because the server was full",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_connections_closed_total",
				Help: "Total number of sessions reaped after their handler exited",
			},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittochat_active_sessions",
				Help: "Current number of registered sessions",
			},
		),
		logins: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_logins_total",
				Help: "Total number of completed username negotiations",
			},
		),
		evictions: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_evictions_total",
				Help: "Total number of sessions kicked due to inactivity",
			},
		),
		broadcasts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_broadcasts_total",
				Help: "Total number of broadcast messages drained from the queue",
			},
		),
		recipients: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_broadcast_recipients_total",
				Help: "Total number of per-recipient deliveries attempted",
			},
		),
		deliveryFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittochat_delivery_failures_total",
				Help: "Total number of deliveries that forced a recipient shutdown",
			},
		),
		commands: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittochat_commands_total",
				Help: "Total number of slash commands by name",
			},
			[]string{"command"},
		),
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "dittochat_tick_duration_seconds",
				Help: "Duration of one housekeeping tick in seconds",
				Buckets: []float64{
					0.0001, // 100us
					0.0005, // 500us
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.033,  // one tick at 30/s
					0.1,    // 100ms
				},
			},
		),
	}
}

func (m *chatMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *chatMetrics) RecordConnectionRejected() {
	m.connectionsRejected.Inc()
}

func (m *chatMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *chatMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *chatMetrics) RecordLogin() {
	m.logins.Inc()
}

func (m *chatMetrics) RecordEviction() {
	m.evictions.Inc()
}

func (m *chatMetrics) RecordBroadcast(recipients int) {
	m.broadcasts.Inc()
	m.recipients.Add(float64(recipients))
}

func (m *chatMetrics) RecordDeliveryFailure() {
	m.deliveryFailures.Inc()
}

func (m *chatMetrics) RecordCommand(name string) {
	m.commands.WithLabelValues(name).Inc()
}

func (m *chatMetrics) RecordTick(duration time.Duration) {
	m.tickDuration.Observe(duration.Seconds())
}
