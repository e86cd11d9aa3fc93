package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/class-verify/pkg/config"
	"github.com/class-verify/pkg/telemetry"
	"github.com/class-verify/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger utils.Logger
	cfg    *config.Config

	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "class-verify",
	Short: "A deferred class-relationship verification tool",
	Long: `class-verify replays class-loading scenarios through the deferred
class-relationship verification engine.

Relationship checks that cannot be resolved during a class's verification
pass are recorded as snippets and validated later as the missing classes
load. Snippets can be persisted to a shared cache (in-memory, database, or
blob storage) so repeated runs of the same classes skip re-deriving them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logLevel := parseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		if cfg.Telemetry.Enabled {
			shutdown, err := telemetry.Init(cmd.Context(), &telemetry.Config{
				Enabled:        true,
				ServiceName:    cfg.Telemetry.ServiceName,
				ServiceVersion: Version,
				Endpoint:       cfg.Telemetry.Endpoint,
				Protocol:       cfg.Telemetry.Protocol,
				Insecure:       cfg.Telemetry.Insecure,
				SampleRatio:    cfg.Telemetry.SampleRatio,
			})
			if err != nil {
				return err
			}
			telemetryShutdown = shutdown
			logger.Info("telemetry enabled (endpoint: %s)", cfg.Telemetry.Endpoint)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	binName := BinName()
	rootCmd.Example = `  # Replay a class-loading scenario
  ` + binName + ` verify -i ./scenario.json

  # Replay with four concurrent verification passes, pretty-printed report
  ` + binName + ` verify -i ./scenario.json -w 4 --pretty -o report.json

  # Inspect a serialized snippet buffer
  ` + binName + ` inspect -i ./com_example_C.snippets

  # Inspect a class's cached snippets using the configured shared cache
  ` + binName + ` inspect --class com/example/C -c ./config.yaml`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

func parseLogLevel(s string) utils.LogLevel {
	switch s {
	case "debug":
		return utils.LevelDebug
	case "warn":
		return utils.LevelWarn
	case "error":
		return utils.LevelError
	default:
		return utils.LevelInfo
	}
}
