package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/greentaxi/config"
	"github.com/YuminosukeSato/greentaxi/dataset"
	"github.com/YuminosukeSato/greentaxi/pkg/errors"
	"github.com/YuminosukeSato/greentaxi/pkg/log"
	"github.com/YuminosukeSato/greentaxi/tracking/provider"
	"github.com/YuminosukeSato/greentaxi/training"
	"github.com/YuminosukeSato/greentaxi/version"
)

var (
	cfgFile string
	// Initialize default trainer config
	cfg = config.NewTrainer()
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"cml-run":         "cml.run",
	"cml-dir":         "cml.dir",
	"year":            "data.year",
	"month":           "data.month",
	"color":           "data.color",
	"data-dir":        "data.dir",
	"promote-version": "promoteVersion",
	"experiment":      "experiment",
	"model-name":      "model.name",
	"tracking-uri":    "tracking.uri",
	"log-level":       "log.level",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trainer",
	Short: "train and register the green taxi trip duration model",
	Long: `trainer downloads one month of NYC green taxi trips, fits a linear
regression of the trip duration, logs the run to the tracking server and
promotes a registered model version.`,
	Args:              cobra.NoArgs,
	Version:           version.Info(),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfg, cfgFile, bindFlags(cmd)); err != nil {
			return errors.Wrap(err, "init trainer config")
		}

		logger, err := log.Setup(cfg.Log, "trainer")
		if err != nil {
			return errors.Wrap(err, "init trainer logger")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runTrainer(ctx, logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.GetLogger().Error("trainer failed", log.ErrorKey, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path of the YAML config file")
	flags.Bool("cml-run", cfg.CML.Run, "write metrics.txt and the plot for a CML report (--cml-run=false to skip)")
	flags.String("cml-dir", cfg.CML.Dir, "directory receiving the CML report")
	flags.Int("year", cfg.Data.Year, "year of the trip file")
	flags.Int("month", cfg.Data.Month, "month of the trip file")
	flags.String("color", cfg.Data.Color, "taxi color of the trip file")
	flags.String("data-dir", cfg.Data.DataDir, "local cache of trip files")
	flags.Int("promote-version", cfg.PromoteVersion, "model version transitioned to the configured stage")
	flags.String("experiment", cfg.Experiment, "experiment name")
	flags.String("model-name", cfg.Model.Name, "registered model name")
	flags.String("tracking-uri", cfg.Tracking.URI, "tracking server URI, overrides MLFLOW_TRACKING_URI")
	flags.String("log-level", cfg.Log.Level, "log level: debug, info, warn, error")

	if err := rootCmd.MarkFlagRequired("cml-run"); err != nil {
		panic(err)
	}
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

func runTrainer(ctx context.Context, logger log.Logger) error {
	logger.Info("trainer starting",
		"version", version.GitVersion,
		log.DatasetKey, cfg.Data.FileName(),
		log.ModelNameKey, cfg.Model.Name,
	)

	// 認証情報はレジストリに触れる前に設定する
	if err := cfg.Tracking.ExportCredentials(); err != nil {
		return err
	}
	backend, err := provider.Open(cfg.Tracking.ProviderOptions(), logger)
	if err != nil {
		return err
	}

	downloader := dataset.NewDownloader(
		dataset.WithProgress(os.Stderr),
		dataset.WithLogger(logger),
	)
	res, err := training.New(cfg, backend.Client, backend.Artifacts, downloader, logger).Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("trainer finished",
		log.RunIDKey, res.RunID,
		log.ModelVersionKey, res.Registered.Version,
		log.RMSETrainKey, res.RMSETrain,
		log.RMSETestKey, res.RMSETest,
	)
	return nil
}
