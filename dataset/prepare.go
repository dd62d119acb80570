package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/core/parallel"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// Retention bounds. Duration bounds are inclusive, passenger bounds exclusive.
const (
	MinDuration   = 1.0
	MaxDuration   = 60.0
	MinPassengers = 0.0
	MaxPassengers = 8.0
)

// prepareThreshold 以上の行数なら並列にフィルタする
const prepareThreshold = 50000

// ToSample derives the duration and applies both retention filters.
// Records with a null feature or timestamp are rejected.
func ToSample(r TripRecord) (Sample, bool) {
	duration, ok := r.Duration()
	if !ok || duration < MinDuration || duration > MaxDuration {
		return Sample{}, false
	}
	if r.PassengerCount == nil || *r.PassengerCount <= MinPassengers || *r.PassengerCount >= MaxPassengers {
		return Sample{}, false
	}
	if r.PULocationID == nil || r.DOLocationID == nil || r.TripDistance == nil ||
		r.FareAmount == nil || r.TotalAmount == nil {
		return Sample{}, false
	}
	return Sample{
		PULocationID:   *r.PULocationID,
		DOLocationID:   *r.DOLocationID,
		TripDistance:   *r.TripDistance,
		PassengerCount: *r.PassengerCount,
		FareAmount:     *r.FareAmount,
		TotalAmount:    *r.TotalAmount,
		Duration:       duration,
	}, true
}

// Prepare converts records to samples, keeping input order.
func Prepare(records []TripRecord) []Sample {
	return parallel.FilterMap(records, prepareThreshold, ToSample)
}

// Matrix は samples を特徴量行列 X (n×6) と目的変数 y に変換する
func Matrix(samples []Sample) (*mat.Dense, *mat.VecDense, error) {
	if len(samples) == 0 {
		return nil, nil, errors.NewModelError("dataset.Matrix", "empty data", errors.ErrEmptyData)
	}

	cols := len(Features)
	data := make([]float64, 0, len(samples)*cols)
	target := make([]float64, len(samples))
	for i, s := range samples {
		data = append(data, s.Vector()...)
		target[i] = s.Duration
	}
	return mat.NewDense(len(samples), cols, data), mat.NewVecDense(len(samples), target), nil
}
