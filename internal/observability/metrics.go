package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wabridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabridge",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Protocol lifecycle events applied to session records.",
		},
		[]string{"event"},
	)
	sessionReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabridge",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Automatic reconnect attempts by outcome.",
		},
		[]string{"outcome"},
	)
	sessionOps = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wabridge",
			Subsystem: "session",
			Name:      "operation_duration_seconds",
			Help:      "Delegated protocol operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "success"},
	)
	fanoutDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wabridge",
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Events queued to observers, by event and result.",
		},
		[]string{"event", "result"},
	)
	fanoutObservers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wabridge",
			Subsystem: "fanout",
			Name:      "observers",
			Help:      "Currently attached observers.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			sessionEvents,
			sessionReconnects,
			sessionOps,
			fanoutDeliveries,
			fanoutObservers,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSessionEvent(event string) {
	RegisterMetrics()
	sessionEvents.WithLabelValues(event).Inc()
}

func RecordReconnect(outcome string) {
	RegisterMetrics()
	sessionReconnects.WithLabelValues(outcome).Inc()
}

func RecordSessionOp(op string, duration time.Duration, success bool) {
	RegisterMetrics()
	sessionOps.WithLabelValues(op, strconv.FormatBool(success)).Observe(duration.Seconds())
}

func RecordFanout(event string, delivered, dropped int) {
	RegisterMetrics()
	if delivered > 0 {
		fanoutDeliveries.WithLabelValues(event, "delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		fanoutDeliveries.WithLabelValues(event, "dropped").Add(float64(dropped))
	}
}

func SetObserverCount(n int) {
	RegisterMetrics()
	fanoutObservers.Set(float64(n))
}
