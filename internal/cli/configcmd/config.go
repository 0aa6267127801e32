package configcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aryankumar/usagemetrics/internal/config"
	"github.com/aryankumar/usagemetrics/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewConfigCmd creates the config management command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize the usagemetrics configuration",
		Long: `Inspect and initialize the usagemetrics configuration.

The configuration is read from --config, $HOME/.usagemetrics.yaml or
$HOME/.usagemetrics/.usagemetrics.yaml, with USAGEMETRICS_* environment
variables applied on top.`,
	}

	cmd.AddCommand(newViewCmd())
	cmd.AddCommand(newInitCmd())

	return cmd
}

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(viper.GetString("config")).Load()
			if err != nil {
				return err
			}

			format, err := output.ParseFormat(orDefault(viper.GetString("output"), string(output.FormatTable)))
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(format, output.WithNoColor(viper.GetBool("no-color")))
			if format == output.FormatTable {
				return formatter.Format(cmd.OutOrStdout(), flatten(cfg))
			}
			return formatter.Format(cmd.OutOrStdout(), cfg)
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with every default filled in",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("config")
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("failed to get home directory: %w", err)
				}
				path = filepath.Join(home, ".usagemetrics.yaml")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
			}

			// Existing values survive --force; everything else gets its default
			mgr := config.NewManager(path)
			if _, err := mgr.Load(); err != nil {
				return err
			}
			if err := mgr.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", mgr.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

// flatten renders cfg as dotted key/value pairs for table output
func flatten(cfg *config.Config) map[string]interface{} {
	out := map[string]interface{}{
		"discoveryURL":          cfg.DiscoveryURL,
		"defaults.environment":  cfg.Defaults.Environment,
		"defaults.timeout":      cfg.Defaults.Timeout,
		"defaults.parallel":     cfg.Defaults.Parallel,
		"defaults.outputFormat": cfg.Defaults.OutputFormat,
		"defaults.noColor":      cfg.Defaults.NoColor,
		"metrics":               strings.Join(cfg.Metrics, ","),
		"window.start":          cfg.Window.Start,
		"window.end":            cfg.Window.End,
	}

	for env, columns := range cfg.Endpoints {
		for column, base := range columns {
			out["endpoints."+env+"."+column] = base
		}
	}

	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
