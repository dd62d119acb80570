package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Variables declared for metrics.
var (
	ForwardCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greentaxi",
		Subsystem: "monitor",
		Name:      "forward_total",
		Help:      "Counter of the number of events forwarded to a monitoring sink.",
	}, []string{"sink"})

	ForwardFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "greentaxi",
		Subsystem: "monitor",
		Name:      "forward_failure_total",
		Help:      "Counter of the number of failed forwards to a monitoring sink.",
	}, []string{"sink"})
)
