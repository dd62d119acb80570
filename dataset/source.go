package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// DefaultBaseURL is the TLC trip record CDN.
const DefaultBaseURL = "https://d37ci6vzurychx.cloudfront.net"

// Source identifies one monthly trip file.
type Source struct {
	Color   string `mapstructure:"color" yaml:"color"`
	Year    int    `mapstructure:"year" yaml:"year"`
	Month   int    `mapstructure:"month" yaml:"month"`
	BaseURL string `mapstructure:"baseURL" yaml:"baseURL"`
	DataDir string `mapstructure:"dir" yaml:"dir"`
}

// Validate checks the fields that end up in the URL.
func (s Source) Validate() error {
	if s.Color == "" {
		return errors.NewValidationError("data.color", "must not be empty", s.Color)
	}
	if s.Year < 2009 {
		return errors.NewValidationError("data.year", "TLC data starts in 2009", s.Year)
	}
	if s.Month < 1 || s.Month > 12 {
		return errors.NewValidationError("data.month", "must be between 1 and 12", s.Month)
	}
	return nil
}

// FileName is {color}_tripdata_{year}-{month:02d}.parquet.
func (s Source) FileName() string {
	return fmt.Sprintf("%s_tripdata_%d-%02d.parquet", s.Color, s.Year, s.Month)
}

// URL returns the download location of the file.
func (s Source) URL() string {
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/trip-data/" + s.FileName()
}

// LocalPath returns where the file is cached.
func (s Source) LocalPath() string {
	dir := s.DataDir
	if dir == "" {
		dir = "data"
	}
	return filepath.Join(dir, s.FileName())
}

// Name is the dataset tag value, e.g. "green-taxi".
func (s Source) Name() string {
	return s.Color + "-taxi"
}
