package fetch

import (
	"fmt"

	"github.com/aryankumar/usagemetrics/internal/config"
	"github.com/aryankumar/usagemetrics/internal/output"
	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/spf13/viper"
)

// settings is the effective configuration of one run: the config file and
// environment, overridden by any root flag the user set
type settings struct {
	cfg         *config.Config
	env         target.Environment
	format      output.Format
	metricsAddr string
}

// loadSettings reads the config file named by --config and applies flag
// overrides. viper.IsSet ignores flag defaults, so an unset flag never
// shadows a value from the file.
func loadSettings() (*settings, error) {
	cfg, err := config.NewManager(viper.GetString("config")).Load()
	if err != nil {
		return nil, err
	}

	if viper.IsSet("discovery-url") {
		cfg.DiscoveryURL = viper.GetString("discovery-url")
	}
	if viper.IsSet("parallel") {
		cfg.Defaults.Parallel = viper.GetInt("parallel")
	}
	if viper.IsSet("timeout") {
		cfg.Defaults.Timeout = viper.GetDuration("timeout")
	}
	if viper.IsSet("output") && viper.GetString("output") != "" {
		cfg.Defaults.OutputFormat = viper.GetString("output")
	}
	if viper.IsSet("no-color") {
		cfg.Defaults.NoColor = viper.GetBool("no-color")
	}
	if viper.IsSet("env") && viper.GetString("env") != "" {
		cfg.Defaults.Environment = viper.GetString("env")
	}

	env, err := target.ParseEnvironment(cfg.Defaults.Environment)
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	format, err := output.ParseFormat(cfg.Defaults.OutputFormat)
	if err != nil {
		return nil, err
	}

	return &settings{
		cfg:         cfg,
		env:         env,
		format:      format,
		metricsAddr: viper.GetString("metrics-addr"),
	}, nil
}
