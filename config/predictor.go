package config

import (
	"time"

	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/tracking"
)

// Predictor configures cmd/predictor.
type Predictor struct {
	// Base options.
	Base `yaml:",inline" mapstructure:",squash"`

	// Server configuration.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Monitor sinks every prediction is forwarded to.
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
}

type ServerConfig struct {
	// Addr the HTTP server listens on.
	Addr string `yaml:"addr" mapstructure:"addr"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" mapstructure:"shutdownTimeout"`

	// AllowOrigins for CORS. Empty allows all origins.
	AllowOrigins []string `yaml:"allowOrigins" mapstructure:"allowOrigins"`
}

type MonitorConfig struct {
	// Sidecar is the Evidently monitoring service. Empty disables it.
	Sidecar SidecarConfig `yaml:"sidecar" mapstructure:"sidecar"`

	// Redis publisher, disabled when URL is empty.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Postgres sink, disabled when DSN is empty.
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

type SidecarConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type RedisConfig struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Channel string `yaml:"channel" mapstructure:"channel"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn" mapstructure:"dsn"`
	Table string `yaml:"table" mapstructure:"table"`
}

// NewPredictor returns the default predictor configuration.
func NewPredictor() *Predictor {
	return &Predictor{
		Base: defaultBase(),
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Monitor: MonitorConfig{
			Sidecar: SidecarConfig{
				URL:     DefaultSidecarURL,
				Timeout: DefaultSidecarTimeout,
			},
			Redis: RedisConfig{
				Channel: DefaultRedisChannel,
			},
			Postgres: PostgresConfig{
				Table: DefaultPostgresTable,
			},
		},
	}
}

// ModelURI is models:/{name}/{stage}.
func (cfg *Predictor) ModelURI() string {
	return tracking.ModelURI{Name: cfg.Model.Name, Stage: cfg.Model.Stage}.String()
}

// Validate config parameters.
func (cfg *Predictor) Validate() error {
	if err := cfg.Base.Validate(); err != nil {
		return err
	}
	stage, err := tracking.CanonicalStage(cfg.Model.Stage)
	if err != nil {
		return err
	}
	cfg.Model.Stage = stage

	if cfg.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "is required", cfg.Server.Addr)
	}
	if cfg.Monitor.Sidecar.URL != "" {
		if err := validateURL("monitor.sidecar.url", cfg.Monitor.Sidecar.URL); err != nil {
			return err
		}
		if cfg.Monitor.Sidecar.Timeout <= 0 {
			return errors.NewValidationError("monitor.sidecar.timeout", "must be positive", cfg.Monitor.Sidecar.Timeout)
		}
	}
	if cfg.Monitor.Redis.URL != "" && cfg.Monitor.Redis.Channel == "" {
		return errors.NewValidationError("monitor.redis.channel", "is required", cfg.Monitor.Redis.Channel)
	}
	if cfg.Monitor.Postgres.DSN != "" && cfg.Monitor.Postgres.Table == "" {
		return errors.NewValidationError("monitor.postgres.table", "is required", cfg.Monitor.Postgres.Table)
	}
	return nil
}
