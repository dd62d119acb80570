package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "greentaxi: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "greentaxi: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 6, 5, 1)

	want := "greentaxi: Predict: dimension mismatch on axis 1 (features). Expected 6, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "greentaxi: LinearRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestSchemaError(t *testing.T) {
	err := NewSchemaError("green_tripdata_2021-01.parquet", []string{"fare_amount", "total_amount"})

	want := "greentaxi: green_tripdata_2021-01.parquet: missing required columns [fare_amount, total_amount]"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	if !Is(err, ErrSchema) {
		t.Error("Expected Is(err, ErrSchema) to be true")
	}
	if Is(err, ErrRegistry) {
		t.Error("schema error must not match ErrRegistry")
	}
}

func TestDownloadError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		cause   error
		wantMsg string
	}{
		{
			name:    "http status",
			status:  403,
			wantMsg: "greentaxi: download https://example.com/a.parquet: unexpected status 403",
		},
		{
			name:    "connection failure",
			cause:   fmt.Errorf("connection refused"),
			wantMsg: "greentaxi: download https://example.com/a.parquet: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDownloadError("https://example.com/a.parquet", tt.status, tt.cause)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			if !Is(err, ErrDataUnavailable) {
				t.Error("Expected Is(err, ErrDataUnavailable) to be true")
			}
		})
	}
}

func TestRegistryError(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		wantNotFound  bool
		wantDuplicate bool
	}{
		{name: "does not exist", code: CodeResourceDoesNotExist, wantNotFound: true},
		{name: "already exists", code: CodeResourceAlreadyExists, wantDuplicate: true},
		{name: "other", code: CodeInvalidParameterValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap(NewRegistryError("get-latest-versions", 404, tt.code, "boom"), "load model")

			if !Is(err, ErrRegistry) {
				t.Error("Expected Is(err, ErrRegistry) to be true")
			}
			if got := Is(err, ErrNotFound); got != tt.wantNotFound {
				t.Errorf("Is(err, ErrNotFound) = %v, want %v", got, tt.wantNotFound)
			}
			if got := Is(err, ErrAlreadyExists); got != tt.wantDuplicate {
				t.Errorf("Is(err, ErrAlreadyExists) = %v, want %v", got, tt.wantDuplicate)
			}

			var regErr *RegistryError
			if !As(err, &regErr) {
				t.Fatal("Error should be castable to *RegistryError")
			}
			if regErr.StatusCode != 404 {
				t.Errorf("StatusCode = %d, want 404", regErr.StatusCode)
			}
		})
	}
}

func TestWrapRegistryError(t *testing.T) {
	if WrapRegistryError("create-run", nil) != nil {
		t.Error("wrapping nil should return nil")
	}

	cause := fmt.Errorf("dial tcp: connection refused")
	err := WrapRegistryError("create-run", cause)
	if !Is(err, ErrRegistry) {
		t.Error("Expected Is(err, ErrRegistry) to be true")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected message to contain cause, got %q", err.Error())
	}
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewIllConditionedWarning("LinearRegression.Fit", 1e16))

	if len(got) != 1 {
		t.Fatalf("expected one warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "ill-conditioned") {
		t.Errorf("unexpected warning %q", got[0].Error())
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	expectedMsg := "in Predict: expected 10, got 5"
	if !strings.Contains(wrapped.Error(), expectedMsg) {
		t.Errorf("Expected wrapped error to contain %q", expectedMsg)
	}
}

func TestCheckValues(t *testing.T) {
	if err := CheckValues("coef", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error %v", err)
	}

	err := CheckValues("coef", []float64{1, nanValue(), 3})
	var instErr *NumericalInstabilityError
	if !As(err, &instErr) {
		t.Fatalf("Expected NumericalInstabilityError, got %T", err)
	}
	if instErr.Operation != "coef" {
		t.Errorf("Operation = %q, want coef", instErr.Operation)
	}
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
