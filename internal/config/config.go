package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aryankumar/usagemetrics/internal/target"
	"github.com/aryankumar/usagemetrics/internal/util"
	"github.com/spf13/viper"
)

const (
	defaultConfigName = ".usagemetrics"
	defaultConfigDir  = ".usagemetrics"
	envPrefix         = "USAGEMETRICS"
)

// Built-in values used when the config file leaves them unset
const (
	DefaultDiscoveryURL = "https://repo.sj.lithium.com/config/values?key=community"
	DefaultStageURL     = "http://internal-ca-fury-dapper-stage-usw2-1736670358.us-west-2.elb.amazonaws.com/dev/v2"
	DefaultEnvironment  = string(target.EnvStage)
	DefaultTimeout      = 30 * time.Second
	DefaultParallel     = 10
	DefaultOutputFormat = "table"

	// 2020-07-12T00:00:00Z .. 2020-08-01T00:00:00Z
	DefaultWindowStart int64 = 1594512000000
	DefaultWindowEnd   int64 = 1596240000000
)

// DefaultMetrics is the metric set requested when none is configured
var DefaultMetrics = []string{
	"billing_server_requests",
	"billing_application_calls",
	"billing_page_views",
	"visits",
	"pageviews",
}

// Manager handles usagemetrics configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &Config{},
	}
}

// Load loads the configuration from file and the environment
func (m *Manager) Load() (*Config, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// Check ~/.usagemetrics/.usagemetrics.yaml, then ~/.usagemetrics.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	// USAGEMETRICS_DISCOVERYURL, USAGEMETRICS_DEFAULTS_PARALLEL, ...
	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	m.registerDefaults()

	m.config = &Config{}

	if err := m.viper.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	return m.config, nil
}

// registerDefaults makes scalar keys known to viper so env overrides reach
// Unmarshal even without a config file
func (m *Manager) registerDefaults() {
	m.viper.SetDefault("discoveryURL", DefaultDiscoveryURL)
	m.viper.SetDefault("defaults.environment", DefaultEnvironment)
	m.viper.SetDefault("defaults.timeout", DefaultTimeout)
	m.viper.SetDefault("defaults.parallel", DefaultParallel)
	m.viper.SetDefault("defaults.outputFormat", DefaultOutputFormat)
	m.viper.SetDefault("defaults.noColor", false)
	m.viper.SetDefault("window.start", DefaultWindowStart)
	m.viper.SetDefault("window.end", DefaultWindowEnd)
}

// Save writes the current configuration to file
func (m *Manager) Save() error {
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		m.configPath = filepath.Join(home, defaultConfigName+".yaml")
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	m.viper.Set("discoveryURL", m.config.DiscoveryURL)
	m.viper.Set("endpoints", m.config.Endpoints)
	m.viper.Set("defaults.environment", m.config.Defaults.Environment)
	m.viper.Set("defaults.timeout", m.config.Defaults.Timeout.String())
	m.viper.Set("defaults.parallel", m.config.Defaults.Parallel)
	m.viper.Set("defaults.outputFormat", m.config.Defaults.OutputFormat)
	m.viper.Set("defaults.noColor", m.config.Defaults.NoColor)
	m.viper.Set("metrics", m.config.Metrics)
	m.viper.Set("window.start", m.config.Window.Start)
	m.viper.Set("window.end", m.config.Window.End)

	if err := m.viper.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the file Save writes to, or "" before a default is chosen
func (m *Manager) Path() string {
	if m.configPath != "" {
		return m.configPath
	}
	return m.viper.ConfigFileUsed()
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// applyDefaults fills whatever the file and env left empty
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	if m.config.DiscoveryURL == "" {
		m.config.DiscoveryURL = DefaultDiscoveryURL
	}

	if m.config.Defaults.Environment == "" {
		m.config.Defaults.Environment = DefaultEnvironment
	}

	if m.config.Defaults.Timeout == 0 {
		m.config.Defaults.Timeout = DefaultTimeout
	}

	if m.config.Defaults.Parallel == 0 {
		m.config.Defaults.Parallel = DefaultParallel
	}

	if m.config.Defaults.OutputFormat == "" {
		m.config.Defaults.OutputFormat = DefaultOutputFormat
	}

	if len(m.config.Metrics) == 0 {
		m.config.Metrics = append([]string(nil), DefaultMetrics...)
	}

	if m.config.Window.Start == 0 && m.config.Window.End == 0 {
		m.config.Window = WindowConfig{Start: DefaultWindowStart, End: DefaultWindowEnd}
	}

	if m.config.Endpoints == nil {
		m.config.Endpoints = make(map[string]map[string]string)
	}

	// Only stage has a known default; prod must be configured
	stage := string(target.EnvStage)
	if len(m.config.Endpoints[stage]) == 0 {
		m.config.Endpoints[stage] = map[string]string{
			target.ColumnSJ:      DefaultStageURL,
			target.ColumnDefault: DefaultStageURL,
		}
	}
}

// Validate checks the configuration for a run against env
func (c *Config) Validate(env target.Environment) error {
	errs := &util.MultiError{}

	if c.DiscoveryURL == "" {
		errs.Add(util.NewValidationError("discoveryURL", nil, "is required"))
	}

	if c.Defaults.Parallel <= 0 {
		errs.Add(util.NewValidationError("defaults.parallel", c.Defaults.Parallel, "must be greater than 0"))
	}

	if c.Defaults.Timeout < 0 {
		errs.Add(util.NewValidationError("defaults.timeout", c.Defaults.Timeout, "must not be negative"))
	}

	switch c.Defaults.OutputFormat {
	case "table", "json", "yaml":
	default:
		errs.Add(util.NewValidationError("defaults.outputFormat", c.Defaults.OutputFormat, "must be table, json or yaml"))
	}

	if c.Window.End <= c.Window.Start {
		errs.Add(util.NewValidationError("window", fmt.Sprintf("%d..%d", c.Window.Start, c.Window.End), "end must be after start"))
	}

	columns := c.Endpoints[string(env)]
	for _, column := range []string{target.ColumnSJ, target.ColumnDefault} {
		if columns[column] == "" {
			errs.Add(util.NewValidationError(
				fmt.Sprintf("endpoints.%s.%s", env, column), nil, "no analytics base URL configured"))
		}
	}

	return errs.ErrorOrNil()
}

// Resolver builds the endpoint resolver for every configured environment
func (c *Config) Resolver() (*target.Resolver, error) {
	endpoints := make(target.Endpoints, len(c.Endpoints))
	for env, columns := range c.Endpoints {
		parsed, err := target.ParseEnvironment(env)
		if err != nil {
			return nil, util.NewValidationError("endpoints", env, err.Error())
		}

		copied := make(map[string]string, len(columns))
		for column, base := range columns {
			copied[strings.ToLower(column)] = base
		}
		endpoints[parsed] = copied
	}

	return target.NewResolver(endpoints)
}
