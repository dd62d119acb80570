package dataset

import (
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// Load reads a trip file, choosing the decoder from the extension.
func Load(path string) ([]TripRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return LoadParquet(path)
	case ".csv":
		return LoadCSV(path)
	default:
		return nil, errors.NewValidationError("data.path", "unsupported file extension", ext)
	}
}
