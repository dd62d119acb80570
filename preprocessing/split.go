// Package preprocessing は学習前のデータ分割を提供する
package preprocessing

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// Split は TrainTestSplit の結果
// TrainIndex / TestIndex は元の行番号（シャッフル後の順序）
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.VecDense

	TrainIndex []int
	TestIndex  []int
}

// TestCount は n 行に対して testSize の割合で取る評価用の行数を返す
// round(testSize * n)
func TestCount(n int, testSize float64) int {
	return int(math.Round(testSize * float64(n)))
}

// TrainTestSplit は行をシード付き PCG で並べ替え、先頭 round(testSize·N) 行を
// 評価用、残りを学習用に割り当てる。同じ seed なら同じ分割になる。
func TrainTestSplit(X mat.Matrix, y *mat.VecDense, testSize float64, seed uint64) (*Split, error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}

	n, c := X.Dims()
	if n == 0 || c == 0 {
		return nil, errors.NewModelError("TrainTestSplit", "empty data", errors.ErrEmptyData)
	}
	if y.Len() != n {
		return nil, errors.NewDimensionError("TrainTestSplit", n, y.Len(), 0)
	}

	nTest := TestCount(n, testSize)
	if nTest == 0 || nTest == n {
		return nil, errors.NewValueError("TrainTestSplit",
			"split would leave the train or test set empty; provide more samples")
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	split := &Split{
		TestIndex:  append([]int(nil), perm[:nTest]...),
		TrainIndex: append([]int(nil), perm[nTest:]...),
	}
	split.XTest, split.YTest = gather(X, y, split.TestIndex)
	split.XTrain, split.YTrain = gather(X, y, split.TrainIndex)
	return split, nil
}

func gather(X mat.Matrix, y *mat.VecDense, rows []int) (*mat.Dense, *mat.VecDense) {
	_, c := X.Dims()
	xs := mat.NewDense(len(rows), c, nil)
	ys := mat.NewVecDense(len(rows), nil)
	for i, r := range rows {
		for j := 0; j < c; j++ {
			xs.Set(i, j, X.At(r, j))
		}
		ys.SetVec(i, y.AtVec(r))
	}
	return xs, ys
}
