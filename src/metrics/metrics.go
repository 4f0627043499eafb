package metrics

import (
	"battery-observer/src/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "battery_observer"

// Metrics holds every collector the observer exports on /metrics.
type Metrics struct {
	Registry prometheus.Gatherer

	ReadingsAccepted     *prometheus.CounterVec
	ReadingsRejected     *prometheus.CounterVec
	BatteryLevel         *prometheus.GaugeVec
	AlertsEmitted        *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	NotificationLatency  prometheus.Histogram
	Sessions             prometheus.Counter
	ConnectionState      prometheus.Gauge
	SeriesSize           prometheus.Gauge
	ArchiveWrites        *prometheus.CounterVec
	ArchiveDropped       prometheus.Counter
}

// -----------------------------------------------------------------------------

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ReadingsAccepted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_accepted_total",
			Help:      "Readings recorded per entity",
		}, []string{"entity_id"}),
		ReadingsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_rejected_total",
			Help:      "State changes dropped by the acceptance filter",
		}, []string{"reason"}),
		BatteryLevel: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_level_percent",
			Help:      "Latest recorded value per entity",
		}, []string{"entity_id"}),
		AlertsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_emitted_total",
			Help:      "Low battery alerts raised",
		}, []string{"entity_id"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Alerts a notifier failed to deliver",
		}, []string{"notifier"}),
		NotificationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Time spent delivering one alert",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		Sessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_source_sessions_total",
			Help:      "Websocket sessions started, including reconnects",
		}),
		ConnectionState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_source_state",
			Help:      "0 disconnected, 1 connecting, 2 authenticating, 3 subscribing, 4 streaming",
		}),
		SeriesSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_readings",
			Help:      "Readings held in the in-memory series",
		}),
		ArchiveWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      "Archive writes per backend and result",
		}, []string{"backend", "result"}),
		ArchiveDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_dropped_total",
			Help:      "Readings not archived because the queue was full",
		}),
	}
}

// -----------------------------------------------------------------------------

// NewDiscard returns metrics bound to a private registry, for components
// constructed without one.
func NewDiscard() *Metrics {
	return New(prometheus.NewRegistry())
}

// -----------------------------------------------------------------------------

// ObserveState is an event source state listener.
func (m *Metrics) ObserveState(st models.ConnectionState) {
	m.ConnectionState.Set(float64(st))
	if st == models.StateConnecting {
		m.Sessions.Inc()
	}
}
