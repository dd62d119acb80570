// Package dataset は NYC TLC の green taxi 乗車記録を取得・読み込みし、
// 学習用のサンプルへ変換する
package dataset

import (
	"time"
)

// Column names as published by the TLC.
const (
	ColPickup         = "lpep_pickup_datetime"
	ColDropoff        = "lpep_dropoff_datetime"
	ColPULocationID   = "PULocationID"
	ColDOLocationID   = "DOLocationID"
	ColPassengerCount = "passenger_count"
	ColTripDistance   = "trip_distance"
	ColFareAmount     = "fare_amount"
	ColTotalAmount    = "total_amount"
)

// Target is the label column derived from the two timestamps.
const Target = "duration"

// Features は学習と推論で共有する特徴量の順序
var Features = []string{
	ColPULocationID,
	ColDOLocationID,
	ColTripDistance,
	ColPassengerCount,
	ColFareAmount,
	ColTotalAmount,
}

// FeatureType returns the column type recorded in a model signature:
// "long" for the location ids, "double" for the rest.
func FeatureType(name string) string {
	switch name {
	case ColPULocationID, ColDOLocationID:
		return "long"
	default:
		return "double"
	}
}

// RequiredColumns lists every column Load must find in a source file.
var RequiredColumns = []string{
	ColPickup,
	ColDropoff,
	ColPULocationID,
	ColDOLocationID,
	ColPassengerCount,
	ColTripDistance,
	ColFareAmount,
	ColTotalAmount,
}

// TripRecord は元ファイルの 1 行。数値列はファイル上 null になりうるので
// ポインタで持つ
type TripRecord struct {
	PickupDatetime  *time.Time `json:"lpep_pickup_datetime"`
	DropoffDatetime *time.Time `json:"lpep_dropoff_datetime"`
	PULocationID    *float64   `json:"PULocationID"`
	DOLocationID    *float64   `json:"DOLocationID"`
	PassengerCount  *float64   `json:"passenger_count"`
	TripDistance    *float64   `json:"trip_distance"`
	FareAmount      *float64   `json:"fare_amount"`
	TotalAmount     *float64   `json:"total_amount"`
}

// Duration returns the trip length in minutes. ok is false when either
// timestamp is missing.
func (r TripRecord) Duration() (minutes float64, ok bool) {
	if r.PickupDatetime == nil || r.DropoffDatetime == nil {
		return 0, false
	}
	return r.DropoffDatetime.Sub(*r.PickupDatetime).Seconds() / 60, true
}

// Sample は前処理後の 1 行（6 特徴量 + duration）
type Sample struct {
	PULocationID   float64 `json:"PULocationID"`
	DOLocationID   float64 `json:"DOLocationID"`
	TripDistance   float64 `json:"trip_distance"`
	PassengerCount float64 `json:"passenger_count"`
	FareAmount     float64 `json:"fare_amount"`
	TotalAmount    float64 `json:"total_amount"`
	Duration       float64 `json:"duration"`
}

// Vector returns the features in Features order.
func (s Sample) Vector() []float64 {
	return []float64{
		s.PULocationID,
		s.DOLocationID,
		s.TripDistance,
		s.PassengerCount,
		s.FareAmount,
		s.TotalAmount,
	}
}
