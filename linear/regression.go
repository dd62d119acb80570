// Package linear implements ordinary least squares regression on gonum
// matrices.
package linear

import (
	"io"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/greentaxi/core/model"
	"github.com/YuminosukeSato/greentaxi/core/parallel"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

const (
	modelType     = "LinearRegression"
	formatVersion = "1.0.0"

	// 並列処理の閾値（この値以下の行数では逐次処理を使用）
	parallelThreshold = 1000

	defaultConditionLimit = 1e12
)

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator

	fitIntercept bool
	featureNames []string
	target       string
	condLimit    float64

	coef      []float64
	intercept float64
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		fitIntercept: true,
		condLimit:    defaultConditionLimit,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// [1 | X] の QR 分解で最小二乗解を求める
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if len(lr.featureNames) > 0 && len(lr.featureNames) != c {
		return errors.NewDimensionError("LinearRegression.Fit", len(lr.featureNames), c, 1)
	}

	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	if r < c+offset {
		return errors.NewValueError("LinearRegression.Fit", "fewer samples than parameters")
	}

	design := mat.NewDense(r, c+offset, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if lr.fitIntercept {
				design.Set(i, 0, 1.0) // 切片項
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var qr mat.QR
	qr.Factorize(design)

	solution := mat.NewDense(c+offset, 1, nil)
	if err := qr.SolveTo(solution, false, y); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return errors.NewModelError("LinearRegression.Fit", "failed to solve least squares", errors.ErrSingularMatrix)
		}
		errors.Warn(errors.NewIllConditionedWarning("LinearRegression.Fit", float64(cond)))
	} else if cond := qr.Cond(); cond > lr.condLimit {
		errors.Warn(errors.NewIllConditionedWarning("LinearRegression.Fit", cond))
	}

	coef := make([]float64, c)
	for j := 0; j < c; j++ {
		coef[j] = solution.At(j+offset, 0)
	}
	intercept := 0.0
	if lr.fitIntercept {
		intercept = solution.At(0, 0)
	}

	// 解に NaN/Inf が含まれる場合は特異行列として扱う
	if err := errors.CheckValues("LinearRegression.Fit", append(coef, intercept)); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "non-finite solution", errors.CombineErrors(errors.ErrSingularMatrix, err))
	}

	lr.coef = coef
	lr.intercept = intercept
	lr.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LinearRegression.Predict")

	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError(modelType, "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures() {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures(), c, 1)
	}

	coef := mat.NewVecDense(c, lr.Coef())
	out := mat.NewVecDense(r, nil)
	out.MulVec(X, coef)

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		predictions.Set(i, 0, out.AtVec(i)+lr.intercept)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	rows, _ := y.Dims()
	pr, _ := predictions.Dims()
	if rows != pr {
		return 0, errors.NewDimensionError("LinearRegression.Score", pr, rows, 0)
	}

	var yMean float64
	for i := 0; i < rows; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(rows)

	var ssTot, ssRes float64
	for i := 0; i < rows; i++ {
		yi := y.At(i, 0)
		d := yi - predictions.At(i, 0)
		ssTot += (yi - yMean) * (yi - yMean)
		ssRes += d * d
	}

	if ssTot == 0 {
		return 0, errors.NewValueError("LinearRegression.Score", "cannot compute score with zero variance in y_true")
	}
	return 1.0 - (ssRes / ssTot), nil
}

// Coef は学習された重み係数のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef == nil {
		return nil
	}
	coef := make([]float64, len(lr.coef))
	copy(coef, lr.coef)
	return coef
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// FeatureNames は学習時の特徴量名を返す
func (lr *LinearRegression) FeatureNames() []string {
	return append([]string(nil), lr.featureNames...)
}

// Target は目的変数名を返す
func (lr *LinearRegression) Target() string {
	return lr.target
}

// ExportWeights はモデルの重みをエクスポートする
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError(modelType, "ExportWeights")
	}

	weights := &model.ModelWeights{
		ModelType:    modelType,
		Version:      formatVersion,
		Coefficients: lr.Coef(),
		Intercept:    lr.intercept,
		Features:     lr.FeatureNames(),
		Target:       lr.target,
		IsFitted:     true,
		Hyperparameters: map[string]interface{}{
			"fit_intercept": lr.fitIntercept,
		},
		Metadata: map[string]interface{}{
			"n_features": lr.NFeatures(),
			"n_samples":  lr.NSamples(),
		},
	}
	weights.Seal()
	return weights, nil
}

// ImportWeights は重みを取り込み、学習済み状態にする
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != modelType {
		return errors.NewValueError("LinearRegression.ImportWeights", "model type mismatch: expected "+modelType+", got "+weights.ModelType)
	}
	if err := weights.Validate(); err != nil {
		return err
	}
	if !weights.IsFitted {
		return errors.NewNotFittedError(modelType, "ImportWeights")
	}
	if err := weights.VerifyChecksum(); err != nil {
		return err
	}

	lr.coef = append([]float64(nil), weights.Coefficients...)
	lr.intercept = weights.Intercept
	lr.featureNames = append([]string(nil), weights.Features...)
	lr.target = weights.Target
	if v, ok := weights.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = v
	}
	nSamples, _ := weights.MetadataInt("n_samples")
	lr.SetFitted(len(lr.coef), nSamples)
	return nil
}

// WriteJSON は学習済みモデルを JSON で書き出す
func (lr *LinearRegression) WriteJSON(w io.Writer) error {
	weights, err := lr.ExportWeights()
	if err != nil {
		return err
	}
	return model.WriteWeights(w, weights)
}

// ReadJSON は JSON からモデルを読み込む
func ReadJSON(r io.Reader) (*LinearRegression, error) {
	weights, err := model.ReadWeights(r)
	if err != nil {
		return nil, err
	}
	lr := NewLinearRegression()
	if err := lr.ImportWeights(weights); err != nil {
		return nil, err
	}
	return lr, nil
}

var (
	_ model.Regressor       = (*LinearRegression)(nil)
	_ model.WeightsExporter = (*LinearRegression)(nil)
)
