package dataset

import (
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/types"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// parquetReadThreads is the reader parallelism passed to parquet-go.
const parquetReadThreads = 4

// LoadParquet は列単位で必要な 8 列だけを読み込む
// 欠損列があれば SchemaError を返す
func LoadParquet(path string) (_ []TripRecord, err error) {
	defer errors.Recover(&err, "dataset.LoadParquet")

	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, parquetReadThreads)
	if err != nil {
		return nil, errors.Wrapf(err, "read parquet footer %s", path)
	}
	defer pr.ReadStop()

	sh := pr.SchemaHandler
	root := sh.GetRootExName()
	exPath := func(col string) string { return common.PathToStr([]string{root, col}) }

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := sh.ExPathToInPath[exPath(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError(path, missing)
	}

	n := pr.GetNumRows()
	records := make([]TripRecord, n)
	if n == 0 {
		return records, nil
	}

	for _, col := range RequiredColumns {
		p := exPath(col)
		values, _, _, err := pr.ReadColumnByPath(p, n)
		if err != nil {
			return nil, errors.Wrapf(err, "read column %s", col)
		}
		if int64(len(values)) != n {
			return nil, errors.Newf("column %s: got %d values, want %d", col, len(values), n)
		}
		elem := sh.SchemaElements[sh.MapIndex[sh.ExPathToInPath[p]]]

		switch col {
		case ColPickup, ColDropoff:
			for i, v := range values {
				t, err := parquetTime(elem, v)
				if err != nil {
					return nil, errors.Wrapf(err, "column %s row %d", col, i)
				}
				if col == ColPickup {
					records[i].PickupDatetime = t
				} else {
					records[i].DropoffDatetime = t
				}
			}
		default:
			dst := numericField(col)
			for i, v := range values {
				f, err := parquetFloat(v)
				if err != nil {
					return nil, errors.Wrapf(err, "column %s row %d", col, i)
				}
				*dst(&records[i]) = f
			}
		}
	}
	return records, nil
}

func numericField(col string) func(*TripRecord) **float64 {
	switch col {
	case ColPULocationID:
		return func(r *TripRecord) **float64 { return &r.PULocationID }
	case ColDOLocationID:
		return func(r *TripRecord) **float64 { return &r.DOLocationID }
	case ColPassengerCount:
		return func(r *TripRecord) **float64 { return &r.PassengerCount }
	case ColTripDistance:
		return func(r *TripRecord) **float64 { return &r.TripDistance }
	case ColFareAmount:
		return func(r *TripRecord) **float64 { return &r.FareAmount }
	default:
		return func(r *TripRecord) **float64 { return &r.TotalAmount }
	}
}

// parquetFloat widens any physical numeric value to float64. nil stays nil.
func parquetFloat(v interface{}) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", v)
	}
	return &f, nil
}

// parquetTime decodes INT64 timestamps (logical or converted type) and
// legacy INT96 values. Un-annotated INT64 is taken as microseconds,
// which is what pandas writes.
func parquetTime(elem *parquet.SchemaElement, v interface{}) (*time.Time, error) {
	var t time.Time
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if elem.GetType() != parquet.Type_INT96 || len(x) != 12 {
			return nil, fmt.Errorf("unsupported timestamp encoding %s", elem.GetType())
		}
		t = types.INT96ToTime(x).UTC()
	case int64:
		switch timestampUnit(elem) {
		case time.Millisecond:
			t = types.TIMESTAMP_MILLISToTime(x, true)
		case time.Nanosecond:
			t = types.TIMESTAMP_NANOSToTime(x, true)
		default:
			t = types.TIMESTAMP_MICROSToTime(x, true)
		}
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", v)
	}
	return &t, nil
}

func timestampUnit(elem *parquet.SchemaElement) time.Duration {
	if lt := elem.GetLogicalType(); lt != nil && lt.IsSetTIMESTAMP() {
		if unit := lt.GetTIMESTAMP().GetUnit(); unit != nil {
			switch {
			case unit.IsSetMILLIS():
				return time.Millisecond
			case unit.IsSetNANOS():
				return time.Nanosecond
			}
		}
		return time.Microsecond
	}
	if elem.IsSetConvertedType() && elem.GetConvertedType() == parquet.ConvertedType_TIMESTAMP_MILLIS {
		return time.Millisecond
	}
	return time.Microsecond
}
