package serving

import (
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/monitor"
)

// TaxiRide is the /predict request body. Pointers let a zero value
// through while a missing field still fails the required check.
type TaxiRide struct {
	PULocationID   *int     `json:"PULocationID" binding:"required"`
	DOLocationID   *int     `json:"DOLocationID" binding:"required"`
	TripDistance   *float64 `json:"trip_distance" binding:"required"`
	PassengerCount *float64 `json:"passenger_count" binding:"required"`
	FareAmount     *float64 `json:"fare_amount" binding:"required"`
	TotalAmount    *float64 `json:"total_amount" binding:"required"`
}

// Features keys the ride by model input name.
func (r *TaxiRide) Features() map[string]float64 {
	return map[string]float64{
		dataset.ColPULocationID:   float64(*r.PULocationID),
		dataset.ColDOLocationID:   float64(*r.DOLocationID),
		dataset.ColTripDistance:   *r.TripDistance,
		dataset.ColPassengerCount: *r.PassengerCount,
		dataset.ColFareAmount:     *r.FareAmount,
		dataset.ColTotalAmount:    *r.TotalAmount,
	}
}

// TaxiRidePrediction echoes the ride and adds the predicted duration in
// minutes. It is also the event forwarded to the monitoring sinks.
type TaxiRidePrediction monitor.Event

func newPrediction(r *TaxiRide, prediction float64) TaxiRidePrediction {
	return TaxiRidePrediction{
		PULocationID:   *r.PULocationID,
		DOLocationID:   *r.DOLocationID,
		TripDistance:   *r.TripDistance,
		PassengerCount: *r.PassengerCount,
		FareAmount:     *r.FareAmount,
		TotalAmount:    *r.TotalAmount,
		Prediction:     prediction,
	}
}

// ErrorDetail is one entry of a 422 response, shaped like the detail
// list FastAPI clients already parse.
type ErrorDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// ValidationResponse is the 422 body.
type ValidationResponse struct {
	Detail []ErrorDetail `json:"detail"`
}

// ErrorResponse is the 500 body.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
