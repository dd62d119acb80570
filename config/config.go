// Package config holds the trainer and predictor configuration and loads
// it from defaults, an optional YAML file, the environment and flags.
package config

import (
	"net/url"
	"os"

	"github.com/YuminosukeSato/greentaxi/artifact"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking/provider"
)

// Base options shared by both processes.
type Base struct {
	// Log configuration.
	Log log.Options `yaml:"log" mapstructure:"log"`

	// Tracking backend and artifact store configuration.
	Tracking TrackingConfig `yaml:"tracking" mapstructure:"tracking"`

	// Model registry names.
	Model ModelConfig `yaml:"model" mapstructure:"model"`
}

type TrackingConfig struct {
	// URI selects the backend: http(s)://, file:// or a path, postgresql://, mysql://.
	URI string `yaml:"uri" mapstructure:"uri"`

	// ArtifactRoot is the default artifact location for database backends.
	ArtifactRoot string `yaml:"artifactRoot" mapstructure:"artifactRoot"`

	// Token is sent as a bearer token to an HTTP tracking server.
	Token string `yaml:"token" mapstructure:"token"`

	// Username and Password are sent as basic auth when Token is empty.
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`

	// CredentialsFile is exported as GOOGLE_APPLICATION_CREDENTIALS.
	CredentialsFile string `yaml:"credentialsFile" mapstructure:"credentialsFile"`

	// S3 configures s3:// artifact locations.
	S3 artifact.S3Config `yaml:"s3" mapstructure:"s3"`
}

type ModelConfig struct {
	// Name of the registered model.
	Name string `yaml:"name" mapstructure:"name"`

	// Stage the trainer promotes to and the predictor loads from.
	Stage string `yaml:"stage" mapstructure:"stage"`
}

// ProviderOptions converts the tracking section for provider.Open.
func (c TrackingConfig) ProviderOptions() provider.Options {
	return provider.Options{
		TrackingURI:     c.URI,
		ArtifactRoot:    c.ArtifactRoot,
		Token:           c.Token,
		Username:        c.Username,
		Password:        c.Password,
		CredentialsFile: c.CredentialsFile,
		S3:              c.S3,
	}.FromEnv()
}

// ExportCredentials sets GOOGLE_APPLICATION_CREDENTIALS so that the
// registry and gs:// artifact stores pick up the service account. It must
// run before the tracking backend is opened.
func (c TrackingConfig) ExportCredentials() error {
	if c.CredentialsFile == "" {
		return nil
	}
	return errors.WithStack(os.Setenv(EnvCredentialsFile, c.CredentialsFile))
}

func defaultBase() Base {
	return Base{
		Log: log.DefaultOptions(),
		Tracking: TrackingConfig{
			URI:             DefaultTrackingURI,
			ArtifactRoot:    DefaultArtifactRoot,
			CredentialsFile: DefaultCredentialsFile,
		},
		Model: ModelConfig{
			Name:  DefaultModelName,
			Stage: DefaultModelStage,
		},
	}
}

// Validate checks the shared options.
func (b *Base) Validate() error {
	if _, err := log.ToLogLevel(b.Log.Level); err != nil {
		return err
	}
	if _, err := provider.Kind(b.Tracking.URI); err != nil {
		return err
	}
	if b.Model.Name == "" {
		return errors.NewValidationError("model.name", "is required", b.Model.Name)
	}
	if b.Model.Stage == "" {
		return errors.NewValidationError("model.stage", "is required", b.Model.Stage)
	}
	return nil
}

func validateURL(param, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidationError(param, "must be an absolute URL", raw)
	}
	return nil
}
