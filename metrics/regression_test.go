package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

func TestMSE(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect prediction",
			yTrue: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			yPred: mat.NewVecDense(5, []float64{1.0, 2.0, 3.0, 4.0, 5.0}),
			want:  0.0,
		},
		{
			name:  "larger errors",
			yTrue: mat.NewVecDense(3, []float64{10.0, 20.0, 30.0}),
			yPred: mat.NewVecDense(3, []float64{12.0, 18.0, 33.0}),
			want:  17.0 / 3.0, // (4 + 4 + 9) / 3
		},
		{
			name:    "dimension mismatch",
			yTrue:   mat.NewVecDense(3, []float64{1.0, 2.0, 3.0}),
			yPred:   mat.NewVecDense(2, []float64{1.0, 2.0}),
			wantErr: true,
		},
		{
			name:    "empty vectors",
			yTrue:   &mat.VecDense{},
			yPred:   &mat.VecDense{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MSE(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-10)
		})
	}
}

func TestRMSE(t *testing.T) {
	yTrue := mat.NewVecDense(4, []float64{10, 20, 30, 40})
	yPred := mat.NewVecDense(4, []float64{12, 18, 33, 37})

	got, err := RMSE(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt((4.0+4+9+9)/4), got, 1e-12)

	_, err = RMSE(&mat.VecDense{}, &mat.VecDense{})
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestRMSEIsNonNegative(t *testing.T) {
	cases := [][2][]float64{
		{{1}, {1}},
		{{-5, 3}, {5, -3}},
		{{0.1, 0.2, 0.3}, {1e9, -1e9, 0}},
	}
	for _, c := range cases {
		n := len(c[0])
		got, err := RMSE(mat.NewVecDense(n, c[0]), mat.NewVecDense(n, c[1]))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
	}
}

func TestRMSEMatrix(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   mat.Matrix
		yPred   mat.Matrix
		want    float64
		wantErr bool
	}{
		{
			name:  "column matrices",
			yTrue: mat.NewDense(2, 1, []float64{1, 3}),
			yPred: mat.NewDense(2, 1, []float64{2, 5}),
			want:  math.Sqrt(2.5),
		},
		{
			name:  "vector and matrix",
			yTrue: mat.NewVecDense(2, []float64{1, 3}),
			yPred: mat.NewDense(2, 1, []float64{1, 3}),
			want:  0,
		},
		{
			name:    "not a column",
			yTrue:   mat.NewDense(1, 2, []float64{1, 3}),
			yPred:   mat.NewDense(1, 2, []float64{1, 3}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RMSEMatrix(tt.yTrue, tt.yPred)
			if tt.wantErr {
				var valErr *errors.ValueError
				assert.True(t, errors.As(err, &valErr))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMAE(t *testing.T) {
	got, err := MAE(
		mat.NewVecDense(3, []float64{1, 2, 3}),
		mat.NewVecDense(3, []float64{2, 2, 1}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-12)
}

func TestR2Score(t *testing.T) {
	got, err := R2Score(
		mat.NewVecDense(4, []float64{3, -0.5, 2, 7}),
		mat.NewVecDense(4, []float64{2.5, 0.0, 2, 8}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.9486081370449679, got, 1e-12)

	_, err = R2Score(mat.NewVecDense(2, []float64{1, 1}), mat.NewVecDense(2, []float64{1, 2}))
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	report, err := Evaluate(
		mat.NewDense(4, 1, []float64{3, -0.5, 2, 7}),
		mat.NewDense(4, 1, []float64{2.5, 0.0, 2, 8}),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, report.N)
	assert.InDelta(t, math.Sqrt(0.375), report.RMSE, 1e-12)
	assert.InDelta(t, 0.5, report.MAE, 1e-12)
	assert.InDelta(t, 0.9486081370449679, report.R2, 1e-12)

	constant, err := Evaluate(mat.NewDense(2, 1, []float64{5, 5}), mat.NewDense(2, 1, []float64{4, 6}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(constant.R2))
	assert.InDelta(t, 1.0, constant.RMSE, 1e-12)
}

func BenchmarkRMSE(b *testing.B) {
	n := 12000
	yTrue := mat.NewVecDense(n, nil)
	yPred := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%60))
		yPred.SetVec(i, float64(i%60)+0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = RMSE(yTrue, yPred)
	}
}
