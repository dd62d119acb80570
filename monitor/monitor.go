// Package monitor forwards every served prediction to the monitoring
// sinks: the Evidently sidecar, and optionally a Redis channel and a
// PostgreSQL table. Sink failures never reach the caller.
package monitor

import (
	"context"
	"io"
	"sync"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
)

//go:generate mockgen -destination mocks/monitor_mock.go -source monitor.go -package mocks

// Event is one served prediction: the request features plus the
// predicted duration in minutes.
type Event struct {
	PULocationID   int     `json:"PULocationID"`
	DOLocationID   int     `json:"DOLocationID"`
	TripDistance   float64 `json:"trip_distance"`
	PassengerCount float64 `json:"passenger_count"`
	FareAmount     float64 `json:"fare_amount"`
	TotalAmount    float64 `json:"total_amount"`
	Prediction     float64 `json:"prediction"`
}

// Forwarder delivers an event to one sink.
type Forwarder interface {
	// Name labels the sink in logs and metrics.
	Name() string

	Forward(ctx context.Context, event Event) error
}

// Fanout forwards each event to every sink concurrently.
type Fanout struct {
	sinks  []Forwarder
	logger log.Logger
}

// NewFanout returns a Fanout over sinks. With no sinks Forward is a no-op.
func NewFanout(logger log.Logger, sinks ...Forwarder) *Fanout {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Fanout{sinks: sinks, logger: logger.With(log.ComponentKey, "monitor")}
}

// Sinks returns the configured sink names.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Forward sends event to every sink and waits for all of them. Failures
// are logged at warn level and counted; it returns the number of sinks
// that failed.
func (f *Fanout) Forward(ctx context.Context, event Event) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, sink := range f.sinks {
		wg.Add(1)
		go func(sink Forwarder) {
			defer wg.Done()
			name := sink.Name()
			ForwardCount.WithLabelValues(name).Inc()
			if err := sink.Forward(ctx, event); err != nil {
				ForwardFailureCount.WithLabelValues(name).Inc()
				f.logger.Warn("cannot reach monitoring sink",
					log.SinkKey, name,
					log.PredictionKey, event.Prediction,
					log.ErrorKey, err,
				)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(sink)
	}
	wg.Wait()
	return failed
}

// Close releases sinks that hold connections.
func (f *Fanout) Close() error {
	var err error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			err = errors.CombineErrors(err, c.Close())
		}
	}
	return err
}
