package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const tlcCSV = `VendorID,lpep_pickup_datetime,lpep_dropoff_datetime,store_and_fwd_flag,RatecodeID,PULocationID,DOLocationID,passenger_count,trip_distance,fare_amount,extra,mta_tax,tip_amount,tolls_amount,ehail_fee,improvement_surcharge,total_amount,payment_type,trip_type,congestion_surcharge
2,2019-01-01 00:10:16,2019-01-01 00:16:32,N,1,97,49,2,.86,6,0.5,0.5,0,0,,0.3,7.3,2,1,0
2,2019-01-01 00:27:11,2019-01-01 00:31:38,N,1,49,189,,.66,4.5,0.5,0.5,0,0,,0.3,5.8,1,1,0
`

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(tlcCSV), "inline")
	require.NoError(t, err)
	require.Len(t, records, 2)

	d, ok := records[0].Duration()
	require.True(t, ok)
	assert.InDelta(t, 6.0+16.0/60, d, 1e-9)
	assert.Equal(t, 97.0, *records[0].PULocationID)
	assert.Equal(t, 0.86, *records[0].TripDistance)
	assert.Equal(t, 7.3, *records[0].TotalAmount)

	assert.Nil(t, records[1].PassengerCount)
	assert.Len(t, Prepare(records), 1)
}

func TestReadCSV_MissingColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("PULocationID,DOLocationID\n1,2\n"), "inline")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchema))
	assert.Contains(t, err.Error(), ColFareAmount)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""), "inline")
	assert.True(t, errors.Is(err, errors.ErrSchema))
}

func TestLoad_CSVByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "green_tripdata_2019-01.csv")
	require.NoError(t, os.WriteFile(path, []byte(tlcCSV), 0o644))

	records, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
