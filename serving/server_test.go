package serving

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/artifact"
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/linear"
	"github.com/YuminosukeSato/greentaxi/modelstore"
	"github.com/YuminosukeSato/greentaxi/monitor"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
)

const modelURI = "models:/green-taxi-trip-duration-linear/Production"

type fakeLoader struct {
	model *modelstore.Model
	err   error
	calls atomic.Int32
	uri   atomic.Value
}

func (f *fakeLoader) Load(_ context.Context, uri string) (*modelstore.Model, error) {
	f.calls.Add(1)
	f.uri.Store(uri)
	return f.model, f.err
}

// durationModel predicts 2 + 3·trip_distance minutes.
func durationModel(t *testing.T) *modelstore.Model {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	n := 40
	X := mat.NewDense(n, len(dataset.Features), nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := range dataset.Features {
			X.Set(i, j, rng.Float64()*20)
		}
		y.SetVec(i, 2+3*X.At(i, 2))
	}
	lr := linear.NewLinearRegression(linear.WithFeatureNames(dataset.Features...), linear.WithTarget(dataset.Target))
	require.NoError(t, lr.Fit(X, y))

	ctx := context.Background()
	repo := artifact.NewLocal(t.TempDir())
	_, err := modelstore.Log(ctx, repo, "run-1", lr, modelstore.Signature{}, "model")
	require.NoError(t, err)
	m, err := modelstore.Load(ctx, repo, "model")
	require.NoError(t, err)
	return m
}

func newTestServer(t *testing.T, loader ModelLoader, sinks ...monitor.Forwarder) (http.Handler, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	s := New(Options{ModelURI: modelURI}, loader, monitor.NewFanout(logger, sinks...), logger)
	return s.Router(), logger
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const rideJSON = `{"PULocationID": 41, "DOLocationID": 74, "trip_distance": 2.5,
	"passenger_count": 1, "fare_amount": 11, "total_amount": 13.8}`

func TestIndex(t *testing.T) {
	h, _ := newTestServer(t, &fakeLoader{})
	w := do(h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "NYC Taxi Ride Duration Prediction"}`, w.Body.String())

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthy", "").Code)
}

func TestPredict(t *testing.T) {
	var forwarded atomic.Value
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e monitor.Event
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		forwarded.Store(e)
	}))
	defer sidecar.Close()

	loader := &fakeLoader{model: durationModel(t)}
	h, _ := newTestServer(t, loader, monitor.NewHTTPForwarder(sidecar.URL, time.Second))

	w := do(h, http.MethodPost, "/predict", rideJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got TaxiRidePrediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 41, got.PULocationID)
	assert.Equal(t, 74, got.DOLocationID)
	assert.Equal(t, 2.5, got.TripDistance)
	assert.Equal(t, 13.8, got.TotalAmount)
	assert.InDelta(t, 2+3*2.5, got.Prediction, 1e-6)

	assert.Equal(t, modelURI, loader.uri.Load())
	assert.Equal(t, monitor.Event(got), forwarded.Load())
}

func TestPredict_Rides(t *testing.T) {
	tests := []struct {
		name string
		body string
		want TaxiRidePrediction
	}{
		{
			name: "documented example",
			body: `{"PULocationID": 10, "DOLocationID": 20, "trip_distance": 2.5,
				"passenger_count": 1, "fare_amount": 10.0, "total_amount": 12.5}`,
			want: TaxiRidePrediction{
				PULocationID: 10, DOLocationID: 20, TripDistance: 2.5,
				PassengerCount: 1, FareAmount: 10, TotalAmount: 12.5,
				Prediction: 2 + 3*2.5,
			},
		},
		{
			name: "longer ride",
			body: `{"PULocationID": 74, "DOLocationID": 236, "trip_distance": 7.2,
				"passenger_count": 2, "fare_amount": 23.5, "total_amount": 29.3}`,
			want: TaxiRidePrediction{
				PULocationID: 74, DOLocationID: 236, TripDistance: 7.2,
				PassengerCount: 2, FareAmount: 23.5, TotalAmount: 29.3,
				Prediction: 2 + 3*7.2,
			},
		},
	}
	model := durationModel(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, &fakeLoader{model: model})

			w := do(h, http.MethodPost, "/predict", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var got TaxiRidePrediction
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.InDelta(t, tt.want.Prediction, got.Prediction, 1e-6)
			got.Prediction = tt.want.Prediction
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredict_LoadsModelEveryRequest(t *testing.T) {
	loader := &fakeLoader{model: durationModel(t)}
	h, _ := newTestServer(t, loader)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/predict", rideJSON).Code)
	}
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestPredict_ZeroValuesAreValid(t *testing.T) {
	h, _ := newTestServer(t, &fakeLoader{model: durationModel(t)})
	w := do(h, http.MethodPost, "/predict", `{"PULocationID": 1, "DOLocationID": 1, "trip_distance": 0,
		"passenger_count": 0, "fare_amount": 0, "total_amount": 0}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestPredict_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		loc  []any
		typ  string
	}{
		{
			name: "missing field",
			body: `{"PULocationID": 41, "DOLocationID": 74, "passenger_count": 1, "fare_amount": 11, "total_amount": 13.8}`,
			loc:  []any{"body", "trip_distance"},
			typ:  "value_error.missing",
		},
		{
			name: "string location",
			body: `{"PULocationID": "midtown", "DOLocationID": 74, "trip_distance": 2.5, "passenger_count": 1, "fare_amount": 11, "total_amount": 13.8}`,
			loc:  []any{"body", "PULocationID"},
			typ:  "type_error.integer",
		},
		{
			name: "string fare",
			body: `{"PULocationID": 41, "DOLocationID": 74, "trip_distance": 2.5, "passenger_count": 1, "fare_amount": "11", "total_amount": 13.8}`,
			loc:  []any{"body", "fare_amount"},
			typ:  "type_error.float",
		},
		{
			name: "array body",
			body: `[]`,
			loc:  []any{"body"},
			typ:  "type_error.dict",
		},
		{
			name: "number body",
			body: `3`,
			loc:  []any{"body"},
			typ:  "type_error.dict",
		},
		{
			name: "empty body",
			body: ``,
			loc:  []any{"body"},
			typ:  "value_error.missing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{model: durationModel(t)}
			h, _ := newTestServer(t, loader)

			w := do(h, http.MethodPost, "/predict", tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var resp ValidationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Detail)
			assert.Equal(t, tt.loc, resp.Detail[0].Loc)
			assert.Equal(t, tt.typ, resp.Detail[0].Type)
			assert.Zero(t, loader.calls.Load())
		})
	}
}

func TestPredict_MalformedJSON(t *testing.T) {
	h, _ := newTestServer(t, &fakeLoader{})
	w := do(h, http.MethodPost, "/predict", `{"PULocationID": 41,`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ValidationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "value_error.jsondecode", resp.Detail[0].Type)
}

func TestPredict_ModelErrorIs500(t *testing.T) {
	notFound := errors.NewRegistryError("resolve "+modelURI, 404, errors.CodeResourceDoesNotExist, "no Production version")
	h, logger := newTestServer(t, &fakeLoader{err: notFound})

	w := do(h, http.MethodPost, "/predict", rideJSON)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "Internal Server Error"}`, w.Body.String())
	assert.True(t, logger.ContainsMessage("prediction failed"))
}

func TestPredict_NonFinitePredictionIs500(t *testing.T) {
	var forwarded atomic.Int32
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded.Add(1)
	}))
	defer sidecar.Close()

	h, logger := newTestServer(t, &fakeLoader{model: durationModel(t)}, monitor.NewHTTPForwarder(sidecar.URL, time.Second))
	served := testutil.ToFloat64(PredictionCount)
	failed := testutil.ToFloat64(PredictionFailureCount)

	// 2 + 3·1e308 overflows to +Inf
	w := do(h, http.MethodPost, "/predict", `{"PULocationID": 10, "DOLocationID": 20, "trip_distance": 1e308,
		"passenger_count": 1, "fare_amount": 10.0, "total_amount": 12.5}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail": "Internal Server Error"}`, w.Body.String())
	assert.True(t, logger.ContainsMessage("prediction failed"))

	assert.Equal(t, served, testutil.ToFloat64(PredictionCount))
	assert.Equal(t, failed+1, testutil.ToFloat64(PredictionFailureCount))
	assert.Zero(t, forwarded.Load())
}

func TestPredict_SidecarDownStillAnswers(t *testing.T) {
	sidecar := httptest.NewServer(http.NotFoundHandler())
	url := sidecar.URL
	sidecar.Close()

	h, logger := newTestServer(t, &fakeLoader{model: durationModel(t)}, monitor.NewHTTPForwarder(url, 100*time.Millisecond))
	w := do(h, http.MethodPost, "/predict", rideJSON)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, logger.ContainsMessage("cannot reach monitoring sink"))
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeLoader{model: durationModel(t)})
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/predict", rideJSON).Code)

	w := do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "greentaxi_predictor_prediction_total")
	assert.Contains(t, w.Body.String(), "greentaxi_predictor_model_load_duration_seconds")
}
