package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1 の行列を返す）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor は学習と予測の両方を行う回帰モデル
type Regressor interface {
	Fitter
	Predictor
	// Score はモデルの決定係数（R²）を計算する
	Score(X, y mat.Matrix) (float64, error)
}

// WeightsExporter はモデルの重みを成果物として書き出せるモデル
type WeightsExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
