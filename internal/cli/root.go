package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aryankumar/usagemetrics/internal/cli/configcmd"
	"github.com/aryankumar/usagemetrics/internal/cli/fetch"
	"github.com/aryankumar/usagemetrics/internal/cli/serve"
	"github.com/aryankumar/usagemetrics/internal/executor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "usagemetrics",
		Short: "usagemetrics - community usage metrics collector",
		Long: `usagemetrics discovers every community from the configuration service,
fans out billing or metric requests to the analytics API under a fixed
concurrency cap, and reports the results grouped by community.

Failed requests are logged and dropped; only a discovery failure aborts a run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.usagemetrics.yaml)")
	rootCmd.PersistentFlags().String("env", "", "analytics environment (stage, prod); default from config")
	rootCmd.PersistentFlags().String("discovery-url", "", "community discovery URL; default from config")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (json, yaml, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "timeout for a single analytics request")
	rootCmd.PersistentFlags().IntP("parallel", "p", executor.DefaultWorkers, "maximum concurrent analytics requests")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address during a run (e.g. :9090)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
	viper.BindPFlag("discovery-url", rootCmd.PersistentFlags().Lookup("discovery-url"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("parallel", rootCmd.PersistentFlags().Lookup("parallel"))
	viper.BindPFlag("metrics-addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(fetch.NewBillingCmd())
	rootCmd.AddCommand(fetch.NewMetricsCmd())
	rootCmd.AddCommand(serve.NewFixtureCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())

	return rootCmd
}

// initConfig wires environment overrides for flags and sets up logging.
// The config file itself is read by config.Manager in each command.
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("config file %s: %w", cfgFile, err)
		}
	}

	// USAGEMETRICS_PARALLEL, USAGEMETRICS_ENV, ...
	viper.SetEnvPrefix("USAGEMETRICS")
	viper.AutomaticEnv()

	setupLogging(cmd)

	return nil
}

// setupLogging configures structured logging with slog
func setupLogging(cmd *cobra.Command) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	noColor, _ := cmd.Flags().GetBool("no-color")

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if noColor {
		// Machine-readable logs when colors are off
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	if verbose {
		slog.Debug("verbose logging enabled")
		if cfgFile != "" {
			slog.Debug("using configuration", "file", cfgFile)
		}
	}
}
