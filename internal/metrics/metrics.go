package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easypdf",
			Name:      "operations_total",
			Help:      "Total document operations by type and result",
		},
		[]string{"operation", "result"},
	)

	operationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "easypdf",
			Name:      "operation_duration_seconds",
			Help:      "Duration of document operations by type",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	inflightOps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "easypdf",
			Name:      "operations_inflight",
			Help:      "Heavy operations currently holding an admission slot",
		},
	)

	admissionRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "easypdf",
			Name:      "admission_rejected_total",
			Help:      "Requests rejected because all admission slots stayed busy",
		},
	)

	compressionRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "easypdf",
			Name:      "compression_ratio",
			Help:      "Compressed size as a fraction of original size",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0, 1.5},
		},
	)

	compressionAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "easypdf",
			Name:      "compression_attempts",
			Help:      "Ghostscript attempts per compress request",
			Buckets:   []float64{1, 2, 3},
		},
	)

	breakerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easypdf",
			Name:      "tool_breaker_events_total",
			Help:      "External tool breaker events by tool and action",
		},
		[]string{"tool", "action"},
	)

	filesSwept = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "easypdf",
			Name:      "files_swept_total",
			Help:      "Expired files removed by the retention sweeper",
		},
		[]string{"dir"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(operations, operationLatency, inflightOps,
		admissionRejected, compressionRatio, compressionAttempts, breakerEvents, filesSwept)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveOperation(op, result string, dur time.Duration) {
	operations.WithLabelValues(op, result).Inc()
	operationLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func IncInflight() { inflightOps.Inc() }
func DecInflight() { inflightOps.Dec() }
func IncRejected() { admissionRejected.Inc() }

func ObserveCompression(ratio float64, attempts int) {
	compressionRatio.Observe(ratio)
	compressionAttempts.Observe(float64(attempts))
}

func BreakerOpened(tool string) { breakerEvents.WithLabelValues(tool, "opened").Inc() }
func BreakerClosed(tool string) { breakerEvents.WithLabelValues(tool, "closed").Inc() }

func AddSwept(dir string, n int) { filesSwept.WithLabelValues(dir).Add(float64(n)) }
