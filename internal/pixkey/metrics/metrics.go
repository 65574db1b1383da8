package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Pix key context.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	Rejections        *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	SideEffects       *prometheus.CounterVec
	OutboxBacklog     prometheus.Gauge
	OutboxParked      prometheus.Counter
	KeysCreated       prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	NotificationsSeen *prometheus.CounterVec
}

// New creates and registers the metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers with reg, so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkey_transitions_total",
			Help: "Committed key state transitions by command and target state",
		}, []string{"command", "to"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkey_rejections_total",
			Help: "Commands rejected by the transition rules or ownership checks",
		}, []string{"command", "reason"}),
		CommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixkey_command_duration_seconds",
			Help:    "Command handling latency including side-effect dispatch",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		SideEffects: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkey_side_effects_total",
			Help: "Side-effect delivery attempts by kind and outcome",
		}, []string{"kind", "outcome"}),
		OutboxBacklog: f.NewGauge(prometheus.GaugeOpts{
			Name: "pixkey_outbox_backlog",
			Help: "Outbox entries found due on the last relay pass",
		}),
		OutboxParked: f.NewCounter(prometheus.CounterOpts{
			Name: "pixkey_outbox_parked_total",
			Help: "Outbox entries given up after the maximum number of attempts",
		}),
		KeysCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "pixkey_keys_created_total",
			Help: "Keys registered in PENDING",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkey_cache_lookups_total",
			Help: "Key cache lookups by result",
		}, []string{"result"}),
		NotificationsSeen: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkey_directory_notifications_total",
			Help: "Directory notifications consumed by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

func (m *Metrics) ObserveTransition(command, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(command, to).Inc()
}

func (m *Metrics) ObserveRejection(command, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(command, reason).Inc()
}

func (m *Metrics) ObserveCommandDuration(command string, seconds float64) {
	if m == nil {
		return
	}
	m.CommandDuration.WithLabelValues(command).Observe(seconds)
}

func (m *Metrics) ObserveSideEffect(kind, outcome string) {
	if m == nil {
		return
	}
	m.SideEffects.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(n))
}

func (m *Metrics) IncOutboxParked() {
	if m == nil {
		return
	}
	m.OutboxParked.Inc()
}

func (m *Metrics) IncKeysCreated() {
	if m == nil {
		return
	}
	m.KeysCreated.Inc()
}

func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.NotificationsSeen.WithLabelValues(kind, outcome).Inc()
}
