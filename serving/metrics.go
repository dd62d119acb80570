package serving

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// PrometheusSubsystemName prefixes the gin request metrics.
	PrometheusSubsystemName = "greentaxi_predictor"

	metricsNamespace = "greentaxi"
	metricsSubsystem = "predictor"
)

// Variables declared for metrics.
var (
	PredictionCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "prediction_total",
		Help:      "Counter of the number of served predictions.",
	})

	PredictionFailureCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "prediction_failure_total",
		Help:      "Counter of the number of failed predictions.",
	})

	ModelLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "model_load_duration_seconds",
		Help:      "Histogram of the time spent resolving and downloading the model.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	PredictedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "predicted_duration_minutes",
		Help:      "Histogram of predicted trip durations in minutes.",
		Buckets:   prometheus.LinearBuckets(0, 5, 13),
	})
)
