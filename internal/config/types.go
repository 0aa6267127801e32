package config

import "time"

// Config represents the usagemetrics configuration file structure
type Config struct {
	// DiscoveryURL returns the community -> datacenter mapping
	DiscoveryURL string `yaml:"discoveryURL,omitempty" json:"discoveryURL,omitempty"`

	// Endpoints maps environment -> endpoint column -> analytics base URL.
	// Columns are "sj" and "default".
	Endpoints map[string]map[string]string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`

	// Defaults contains default settings for batch runs
	Defaults DefaultsConfig `yaml:"defaults,omitempty" json:"defaults,omitempty"`

	// Metrics is the metric set requested in metric mode
	Metrics []string `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	// Window is the time range for metric requests
	Window WindowConfig `yaml:"window,omitempty" json:"window,omitempty"`
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// Environment is the analytics tier (stage, prod)
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`

	// Timeout for a single analytics request
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Parallel is the concurrency cap
	Parallel int `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	// OutputFormat is the default output format (table, json, yaml)
	OutputFormat string `yaml:"outputFormat,omitempty" json:"outputFormat,omitempty"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}

// WindowConfig is a time range in epoch milliseconds
type WindowConfig struct {
	Start int64 `yaml:"start,omitempty" json:"start,omitempty"`
	End   int64 `yaml:"end,omitempty" json:"end,omitempty"`
}

// StartTime returns Start as a time.Time
func (w WindowConfig) StartTime() time.Time {
	return time.UnixMilli(w.Start)
}

// EndTime returns End as a time.Time
func (w WindowConfig) EndTime() time.Time {
	return time.UnixMilli(w.End)
}
