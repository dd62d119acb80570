package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/greentaxi/config"
	"github.com/YuminosukeSato/greentaxi/modelstore"
	"github.com/YuminosukeSato/greentaxi/monitor"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/serving"
	"github.com/YuminosukeSato/greentaxi/tracking/provider"
	"github.com/YuminosukeSato/greentaxi/version"
)

var (
	cfgFile string
	// Initialize default predictor config
	cfg = config.NewPredictor()
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"model-name":   "model.name",
	"stage":        "model.stage",
	"sidecar-url":  "monitor.sidecar.url",
	"tracking-uri": "tracking.uri",
	"log-level":    "log.level",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "serve green taxi trip duration predictions",
	Long: `predictor answers POST /predict with the trip duration predicted by
the registered model in the configured stage, and forwards every
prediction to the monitoring service.`,
	Args:              cobra.NoArgs,
	Version:           version.Info(),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfg, cfgFile, bindFlags(cmd)); err != nil {
			return errors.Wrap(err, "init predictor config")
		}

		logger, err := log.Setup(cfg.Log, "predictor")
		if err != nil {
			return errors.Wrap(err, "init predictor logger")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runPredictor(ctx, logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.GetLogger().Error("predictor failed", log.ErrorKey, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path of the YAML config file")
	flags.String("addr", cfg.Server.Addr, "listen address")
	flags.String("model-name", cfg.Model.Name, "registered model name")
	flags.String("stage", cfg.Model.Stage, "registry stage to serve")
	flags.String("sidecar-url", cfg.Monitor.Sidecar.URL, "monitoring service base URL, empty to disable")
	flags.String("tracking-uri", cfg.Tracking.URI, "tracking server URI, overrides MLFLOW_TRACKING_URI")
	flags.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")
}

func bindFlags(cmd *cobra.Command) config.Binder {
	return func(v *viper.Viper) error {
		for flag, key := range flagKeys {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		return nil
	}
}

func openSinks(ctx context.Context, logger log.Logger) ([]monitor.Forwarder, error) {
	var sinks []monitor.Forwarder
	mc := cfg.Monitor
	if mc.Sidecar.URL != "" {
		sinks = append(sinks, monitor.NewHTTPForwarder(mc.Sidecar.URL, mc.Sidecar.Timeout))
	}
	if mc.Redis.URL != "" {
		p, err := monitor.DialRedis(ctx, mc.Redis.URL, mc.Redis.Channel)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, p)
	}
	if mc.Postgres.DSN != "" {
		s, err := monitor.DialPostgres(ctx, mc.Postgres.DSN, mc.Postgres.Table)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	for _, s := range sinks {
		logger.Info("monitoring sink enabled", log.SinkKey, s.Name())
	}
	return sinks, nil
}

func runPredictor(ctx context.Context, logger log.Logger) error {
	if err := cfg.Tracking.ExportCredentials(); err != nil {
		return err
	}
	backend, err := provider.Open(cfg.Tracking.ProviderOptions(), logger)
	if err != nil {
		return err
	}

	sinks, err := openSinks(ctx, logger)
	if err != nil {
		return err
	}
	fanout := monitor.NewFanout(logger, sinks...)
	defer fanout.Close()

	loader := modelstore.NewLoader(backend.Client, backend.Artifacts, logger)
	s := serving.New(serving.Options{
		ModelURI:     cfg.ModelURI(),
		AllowOrigins: cfg.Server.AllowOrigins,
		Debug:        cfg.Log.Level == "debug",
	}, loader, fanout, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("predictor listening",
			"version", version.GitVersion,
			"http.addr", cfg.Server.Addr,
			log.ModelURIKey, cfg.ModelURI(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	logger.Info("predictor shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.WithStack(srv.Shutdown(shutdownCtx))
}
