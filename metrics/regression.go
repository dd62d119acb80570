// Package metrics は回帰モデルの評価指標を提供する
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
// 空でない入力に対して常に 0 以上を返す
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// RMSEMatrix は n×1 行列（Predict の戻り値など）に対して RMSE を計算する
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := columnVec("RMSEMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := columnVec("RMSEMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return RMSE(t, p)
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		yt := yTrue.AtVec(i)
		d := yt - yPred.AtVec(i)
		tss += (yt - yMean) * (yt - yMean)
		rss += d * d
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// Report は一つの評価セットに対する指標のまとめ
type Report struct {
	N    int     `json:"n"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	// R2 は yTrue の分散が 0 の場合 NaN
	R2 float64 `json:"r2"`
}

// Evaluate は n×1 行列の真値と予測値から Report を作る
func Evaluate(yTrue, yPred mat.Matrix) (Report, error) {
	t, err := columnVec("Evaluate", yTrue)
	if err != nil {
		return Report{}, err
	}
	p, err := columnVec("Evaluate", yPred)
	if err != nil {
		return Report{}, err
	}

	rmse, err := RMSE(t, p)
	if err != nil {
		return Report{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return Report{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		r2 = math.NaN()
	}
	return Report{N: t.Len(), RMSE: rmse, MAE: mae, R2: r2}, nil
}

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewModelError(op, "empty vector", errors.ErrEmptyData)
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func columnVec(op string, m mat.Matrix) (*mat.VecDense, error) {
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty matrix", errors.ErrEmptyData)
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}
