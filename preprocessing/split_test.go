package preprocessing

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

func sequentialData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i)*10)
		y.SetVec(i, float64(i)*100)
	}
	return X, y
}

func TestTestCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 10, want: 2},
		{n: 12, want: 2}, // 2.4
		{n: 13, want: 3}, // 2.6
		{n: 58214, want: 11643},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TestCount(tt.n, 0.2), "n=%d", tt.n)
	}
}

func TestTrainTestSplit_PartitionsRows(t *testing.T) {
	X, y := sequentialData(101)

	split, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, split.TestIndex, 20)
	assert.Len(t, split.TrainIndex, 81)

	all := append(append([]int(nil), split.TrainIndex...), split.TestIndex...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "train and test must be disjoint and cover every row")
	}

	// 行は特徴量と目的変数を揃えたまま移動する
	for i, r := range split.TestIndex {
		assert.Equal(t, float64(r), split.XTest.At(i, 0))
		assert.Equal(t, float64(r)*10, split.XTest.At(i, 1))
		assert.Equal(t, float64(r)*100, split.YTest.AtVec(i))
	}
	for i, r := range split.TrainIndex {
		assert.Equal(t, float64(r)*100, split.YTrain.AtVec(i))
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	X, y := sequentialData(50)

	a, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	b, err := TrainTestSplit(X, y, 0.2, 42)
	require.NoError(t, err)
	c, err := TrainTestSplit(X, y, 0.2, 7)
	require.NoError(t, err)

	assert.Equal(t, a.TestIndex, b.TestIndex)
	assert.Equal(t, a.TrainIndex, b.TrainIndex)
	assert.NotEqual(t, a.TestIndex, c.TestIndex)
}

func TestTrainTestSplit_Errors(t *testing.T) {
	X, y := sequentialData(3)

	tests := []struct {
		name     string
		X        mat.Matrix
		y        *mat.VecDense
		testSize float64
	}{
		{name: "test size zero", X: X, y: y, testSize: 0},
		{name: "test size one", X: X, y: y, testSize: 1},
		{name: "length mismatch", X: X, y: mat.NewVecDense(2, nil), testSize: 0.2},
		{name: "empty test set", X: X, y: y, testSize: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrainTestSplit(tt.X, tt.y, tt.testSize, 42)
			assert.Error(t, err)
		})
	}

	_, err := TrainTestSplit(X, y, 1.5, 42)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}
