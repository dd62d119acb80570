package config

import (
	"bytes"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
)

// Unprefixed variables honoured for compatibility with MLflow tooling.
const (
	EnvTrackingURI     = "MLFLOW_TRACKING_URI"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
)

// Validator is implemented by Trainer and Predictor.
type Validator interface {
	Validate() error
}

// Binder attaches command line flags to configuration keys.
type Binder func(v *viper.Viper) error

// Load fills cfg from, in increasing precedence, its current values, the
// YAML file at path (optional), the environment and the flags bound by
// bind. The result is validated.
func Load(cfg Validator, path string, bind Binder) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// Register every key by feeding the defaults in first, so AutomaticEnv
	// can see keys that the config file leaves out.
	defaults, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal defaults")
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return errors.Wrap(err, "read defaults")
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return errors.Wrapf(err, "read config file %s", path)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("tracking.uri", EnvPrefix+"_TRACKING_URI", EnvTrackingURI); err != nil {
		return errors.WithStack(err)
	}
	if err := v.BindEnv("tracking.credentialsFile", EnvPrefix+"_TRACKING_CREDENTIALSFILE", EnvCredentialsFile); err != nil {
		return errors.WithStack(err)
	}

	if bind != nil {
		if err := bind(v); err != nil {
			return errors.Wrap(err, "bind flags")
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return errors.Wrap(err, "unmarshal config")
	}
	return cfg.Validate()
}
