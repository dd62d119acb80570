package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// TLC の CSV は "2019-01-01 00:10:16" 形式
var csvTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
}

type csvTime struct {
	time.Time
}

func (t *csvTime) UnmarshalCSV(s string) error {
	var err error
	for _, layout := range csvTimeLayouts {
		var parsed time.Time
		if parsed, err = time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return err
}

type csvRow struct {
	Pickup         *csvTime `csv:"lpep_pickup_datetime,omitempty"`
	Dropoff        *csvTime `csv:"lpep_dropoff_datetime,omitempty"`
	PULocationID   *float64 `csv:"PULocationID,omitempty"`
	DOLocationID   *float64 `csv:"DOLocationID,omitempty"`
	PassengerCount *float64 `csv:"passenger_count,omitempty"`
	TripDistance   *float64 `csv:"trip_distance,omitempty"`
	FareAmount     *float64 `csv:"fare_amount,omitempty"`
	TotalAmount    *float64 `csv:"total_amount,omitempty"`
}

func (r *csvRow) record() TripRecord {
	rec := TripRecord{
		PULocationID:   r.PULocationID,
		DOLocationID:   r.DOLocationID,
		PassengerCount: r.PassengerCount,
		TripDistance:   r.TripDistance,
		FareAmount:     r.FareAmount,
		TotalAmount:    r.TotalAmount,
	}
	if r.Pickup != nil {
		rec.PickupDatetime = &r.Pickup.Time
	}
	if r.Dropoff != nil {
		rec.DropoffDatetime = &r.Dropoff.Time
	}
	return rec
}

// LoadCSV reads a TLC CSV export.
func LoadCSV(path string) ([]TripRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ReadCSV(f, path)
}

// ReadCSV は r から CSV を読み込む。source はエラーメッセージ用
func ReadCSV(r io.Reader, source string) ([]TripRecord, error) {
	// ヘッダだけ先に読んで欠損列を SchemaError として返す
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewSchemaError(source, RequiredColumns)
		}
		return nil, errors.Wrapf(err, "read csv header %s", source)
	}
	present := make(map[string]bool, len(header))
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		present[header[i]] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError(source, missing)
	}

	var rows []*csvRow
	if err := gocsv.UnmarshalCSV(&headerReader{header: header, r: cr}, &rows); err != nil {
		return nil, errors.Wrapf(err, "decode csv %s", source)
	}

	records := make([]TripRecord, len(rows))
	for i, row := range rows {
		records[i] = row.record()
	}
	return records, nil
}

// headerReader replays an already-consumed header line to gocsv.
type headerReader struct {
	header []string
	r      *csv.Reader
}

func (h *headerReader) Read() ([]string, error) {
	if h.header != nil {
		line := h.header
		h.header = nil
		return line, nil
	}
	return h.r.Read()
}

func (h *headerReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		line, err := h.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
}
