// Package greentaxi trains and serves a trip duration model for NYC green
// taxi rides.
//
// The repository builds two binaries that share nothing at runtime except
// the model registry:
//
//   - cmd/trainer downloads one month of trip records, fits an ordinary
//     least squares regression of the ride duration in minutes, logs the
//     run (tags, RMSE metrics, model artifact, plot) to an MLflow
//     compatible tracking server and promotes a registered model version.
//   - cmd/predictor serves POST /predict. Every request loads
//     models:/{name}/Production from the registry, predicts the duration of
//     one ride and forwards the enriched record to the monitoring sinks.
//
// # Quick Start
//
// Train and promote the model for January 2021:
//
//	export MLFLOW_TRACKING_URI=http://localhost:5000
//	trainer --cml-run=false --year 2021 --month 1
//
// Serve it:
//
//	predictor --addr :8000 --sidecar-url http://evidently_service:8085
//
//	curl -X POST localhost:8000/predict -d '{"PULocationID": 43,
//	  "DOLocationID": 151, "trip_distance": 1.01, "passenger_count": 1,
//	  "fare_amount": 5.5, "total_amount": 6.8}'
//
// # Packages
//
//   - dataset: trip file download, parquet/CSV loading, duration filters
//   - linear, metrics, preprocessing: OLS fit, RMSE and the seeded split
//   - tracking, artifact, modelstore: registry clients and model artifacts
//   - training: the pipeline run by cmd/trainer
//   - serving, monitor: the HTTP service and its telemetry sinks
//   - config, pkg/log, pkg/errors: configuration, logging and errors
package greentaxi
