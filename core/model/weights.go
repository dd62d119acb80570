package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
// モデル成果物の model.json はこの構造体をそのまま JSON にしたもの
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression 等）
	ModelType string `json:"model_type"`

	// Version はフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数（Features と同じ順序）
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前。推論時の列順を決める
	Features []string `json:"features,omitempty"`

	// Target は目的変数の名前
	Target string `json:"target,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// Metadata は追加のメタデータ（n_features, n_samples, checksum 等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`
}

// ChecksumKey は Metadata 内のチェックサムのキー
const ChecksumKey = "checksum"

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return nil
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Features), len(mw.Coefficients), 1)
	}
	if err := errors.CheckValues("ModelWeights.coefficients", mw.Coefficients); err != nil {
		return err
	}
	return errors.CheckScalar("ModelWeights.intercept", mw.Intercept)
}

// ComputeChecksum は係数と切片から SHA-256 チェックサムを計算する
func (mw *ModelWeights) ComputeChecksum() string {
	payload := make([]float64, 0, len(mw.Coefficients)+1)
	payload = append(payload, mw.Coefficients...)
	payload = append(payload, mw.Intercept)
	data, _ := json.Marshal(payload)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Seal は Metadata にチェックサムを書き込む
func (mw *ModelWeights) Seal() {
	if mw.Metadata == nil {
		mw.Metadata = make(map[string]interface{})
	}
	mw.Metadata[ChecksumKey] = mw.ComputeChecksum()
}

// VerifyChecksum は記録されたチェックサムと再計算した値を比較する
// チェックサムが記録されていない場合は検証をスキップする
func (mw *ModelWeights) VerifyChecksum() error {
	recorded, ok := mw.Metadata[ChecksumKey].(string)
	if !ok {
		return nil
	}
	if recorded != mw.ComputeChecksum() {
		return errors.NewModelError("ModelWeights.VerifyChecksum", "checksum mismatch: weights may be corrupted", nil)
	}
	return nil
}

// MetadataInt は JSON 往復後に float64 になった数値メタデータを int で取り出す
func (mw *ModelWeights) MetadataInt(key string) (int, bool) {
	switch v := mw.Metadata[key].(type) {
	case int:
		return v, true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		Intercept:       mw.Intercept,
		Target:          mw.Target,
		IsFitted:        mw.IsFitted,
		Coefficients:    make([]float64, len(mw.Coefficients)),
		Features:        make([]string, len(mw.Features)),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}

	copy(clone.Coefficients, mw.Coefficients)
	copy(clone.Features, mw.Features)

	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}

	return clone
}
