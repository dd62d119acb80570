package model

import (
	"encoding/json"
	"io"
	"os"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// WriteWeights は重みを検証して JSON で w に書き出す
func WriteWeights(w io.Writer, weights *ModelWeights) error {
	if err := weights.Validate(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(weights); err != nil {
		return errors.Wrap(err, "encode model weights")
	}
	return nil
}

// ReadWeights は r から重みを読み込み、妥当性とチェックサムを検証する
func ReadWeights(r io.Reader) (*ModelWeights, error) {
	var weights ModelWeights
	if err := json.NewDecoder(r).Decode(&weights); err != nil {
		return nil, errors.Wrap(err, "decode model weights")
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := weights.VerifyChecksum(); err != nil {
		return nil, err
	}
	return &weights, nil
}

// SaveWeights は重みをファイルに保存する
//
// 使用例:
//
//	weights, _ := reg.ExportWeights()
//	err := model.SaveWeights("model/model.json", weights)
func SaveWeights(filename string, weights *ModelWeights) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := WriteWeights(file, weights); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadWeights はファイルから重みを読み込む
func LoadWeights(filename string) (*ModelWeights, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()
	return ReadWeights(file)
}
