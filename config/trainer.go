package config

import (
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Trainer configures cmd/trainer.
type Trainer struct {
	// Base options.
	Base `yaml:",inline" mapstructure:",squash"`

	// Experiment the training run is recorded under.
	Experiment string `yaml:"experiment" mapstructure:"experiment"`

	// Developer is recorded as the run's developer tag.
	Developer string `yaml:"developer" mapstructure:"developer"`

	// Data is the trip file to train on.
	Data dataset.Source `yaml:"data" mapstructure:"data"`

	// Split configuration.
	Split SplitConfig `yaml:"split" mapstructure:"split"`

	// PromoteVersion is the model version transitioned to Model.Stage
	// after registration.
	PromoteVersion int `yaml:"promoteVersion" mapstructure:"promoteVersion"`

	// CML report configuration.
	CML CMLConfig `yaml:"cml" mapstructure:"cml"`
}

type SplitConfig struct {
	// TestSize is the fraction of rows held out for evaluation.
	TestSize float64 `yaml:"testSize" mapstructure:"testSize"`

	// Seed of the shuffle.
	Seed uint64 `yaml:"seed" mapstructure:"seed"`
}

type CMLConfig struct {
	// Run enables writing metrics.txt and the plot for CML.
	Run bool `yaml:"run" mapstructure:"run"`

	// Dir receives metrics.txt.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// NewTrainer returns the default trainer configuration.
func NewTrainer() *Trainer {
	return &Trainer{
		Base:       defaultBase(),
		Experiment: DefaultExperiment,
		Developer:  DefaultDeveloper,
		Data:       DefaultSource,
		Split: SplitConfig{
			TestSize: DefaultTestSize,
			Seed:     DefaultSeed,
		},
		PromoteVersion: DefaultPromoteVersion,
		CML: CMLConfig{
			Dir: ".",
		},
	}
}

// Validate config parameters.
func (cfg *Trainer) Validate() error {
	if err := cfg.Base.Validate(); err != nil {
		return err
	}
	if cfg.Experiment == "" {
		return errors.NewValidationError("experiment", "is required", cfg.Experiment)
	}
	if err := cfg.Data.Validate(); err != nil {
		return err
	}
	if cfg.Data.BaseURL != "" {
		if err := validateURL("data.baseURL", cfg.Data.BaseURL); err != nil {
			return err
		}
	}
	if !(cfg.Split.TestSize > 0 && cfg.Split.TestSize < 1) {
		return errors.NewValidationError("split.testSize", "must be in (0, 1)", cfg.Split.TestSize)
	}
	if cfg.PromoteVersion < 1 {
		return errors.NewValidationError("promoteVersion", "must be positive", cfg.PromoteVersion)
	}
	stage, err := tracking.CanonicalStage(cfg.Model.Stage)
	if err != nil {
		return err
	}
	cfg.Model.Stage = stage
	if cfg.CML.Run && cfg.CML.Dir == "" {
		return errors.NewValidationError("cml.dir", "is required when cml.run is set", cfg.CML.Dir)
	}
	return nil
}
