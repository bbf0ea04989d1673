// Package config provides unified configuration loading for atnsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/atnsim/internal/constants"
	"github.com/nvandessel/atnsim/internal/integrator"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/logging"
	"github.com/nvandessel/atnsim/internal/params"
	"github.com/nvandessel/atnsim/internal/report"
)

// Output formats.
const (
	FormatCSV          = "csv"
	FormatArrow        = "arrow"
	FormatLineProtocol = "lineproto"
)

// Config contains all atnsim configuration settings.
type Config struct {
	// Integration controls the timestep driver and integrator.
	Integration IntegrationConfig `json:"integration" yaml:"integration"`

	// LinkParameters is the flat key/value source of trophic link and
	// species defaults. Keys present in a file override the built-in set.
	LinkParameters map[string]string `json:"link_parameters" yaml:"link_parameters"`

	// Store selects the job store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Output controls where and how reports are written.
	Output OutputConfig `json:"output" yaml:"output"`

	// Logging contains settings for operational and diagnostic logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Telemetry controls metrics and tracing export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Strict enables validation of trophic parameters and species
	// defaults before a job is integrated.
	Strict bool `json:"strict" yaml:"strict"`
}

// IntegrationConfig configures the integration of one job.
type IntegrationConfig struct {
	TimeInterval  float64 `json:"time_interval" yaml:"time_interval"`
	MaxError      float64 `json:"max_error" yaml:"max_error"`
	BiomassScale  float64 `json:"biomass_scale" yaml:"biomass_scale"`
	EquationSet   string  `json:"equation_set" yaml:"equation_set"`
	InitTimeIndex int     `json:"init_time_index" yaml:"init_time_index"`
	MaxOrder      int     `json:"max_order" yaml:"max_order"`
	MaxHalvings   int     `json:"max_halvings" yaml:"max_halvings"`
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	// Driver is "sqlite" (default), "postgres" or "memory".
	Driver string `json:"driver" yaml:"driver"`
	// DSN is the sqlite file path or postgres connection string.
	// Supports ${VAR} syntax for env vars.
	DSN string `json:"dsn" yaml:"dsn"`
}

// OutputConfig configures report output.
type OutputConfig struct {
	Dir       string `json:"dir" yaml:"dir"`
	Format    string `json:"format" yaml:"format"`
	Precision int    `json:"precision" yaml:"precision"`

	// Influx, when URL is set, also pushes every report to InfluxDB.
	Influx InfluxConfig `json:"influx" yaml:"influx"`
}

// InfluxConfig locates an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
	Token  string `json:"token,omitempty" yaml:"token,omitempty"`
	Org    string `json:"org,omitempty" yaml:"org,omitempty"`
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
}

// RedactedToken masks the token for display.
func (c InfluxConfig) RedactedToken() string {
	if c.Token == "" {
		return ""
	}
	return "(set)"
}

// Sink converts the settings for the report package.
func (c InfluxConfig) Sink() report.InfluxConfig {
	return report.InfluxConfig{URL: c.URL, Token: c.Token, Org: c.Org, Bucket: c.Bucket}
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables diagnostics.jsonl in the output directory.
	// "trace" additionally logs every integrated timestep.
	Level string `json:"level" yaml:"level"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// MetricsFile receives Prometheus text metrics after each run.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
	// Trace exports spans to stderr when set.
	Trace bool `json:"trace" yaml:"trace"`
}

// Dir returns the atnsim home directory, ~/.atnsim.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atnsim"
	}
	return filepath.Join(home, ".atnsim")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	links := make(map[string]string, len(constants.DefaultLinkProperties))
	for k, v := range constants.DefaultLinkProperties {
		links[k] = v
	}
	return &Config{
		Integration: IntegrationConfig{
			TimeInterval:  constants.DefaultTimeInterval,
			MaxError:      constants.DefaultMaxError,
			BiomassScale:  constants.DefaultBiomassScale,
			EquationSet:   integrator.ATN.String(),
			InitTimeIndex: 0,
			MaxOrder:      constants.DefaultMaxOrder,
			MaxHalvings:   constants.DefaultMaxHalvings,
		},
		LinkParameters: links,
		Store: StoreConfig{
			Driver: jobs.DriverSQLite,
			DSN:    filepath.Join(Dir(), "atnsim.db"),
		},
		Output: OutputConfig{
			Dir:       ".",
			Format:    FormatCSV,
			Precision: 0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from path, or from ~/.atnsim/config.yaml when
// path is empty and that file exists, then applies environment overrides.
// Order: defaults -> file -> environment variables.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		candidate := filepath.Join(Dir(), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.DSN = expandEnvVars(config.Store.DSN)
	config.Output.Influx.Token = expandEnvVars(config.Output.Influx.Token)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.IntegratorConfig().Validate(); err != nil {
		return fmt.Errorf("integration: %w", err)
	}
	if !(c.Integration.BiomassScale > 0) {
		return fmt.Errorf("biomass_scale must be positive, got %v", c.Integration.BiomassScale)
	}
	if c.Integration.InitTimeIndex < 0 {
		return fmt.Errorf("init_time_index must be non-negative, got %d", c.Integration.InitTimeIndex)
	}
	if _, err := integrator.ParseEquationSet(c.Integration.EquationSet); err != nil {
		return err
	}

	switch c.Store.Driver {
	case jobs.DriverSQLite, jobs.DriverPostgres, jobs.DriverMemory:
	default:
		return fmt.Errorf("invalid store driver: %s (valid: sqlite, postgres, memory)", c.Store.Driver)
	}
	if c.Store.Driver != jobs.DriverMemory && c.Store.DSN == "" {
		return fmt.Errorf("store dsn is required for driver %s", c.Store.Driver)
	}

	switch c.Output.Format {
	case FormatCSV, FormatArrow, FormatLineProtocol:
	default:
		return fmt.Errorf("invalid output format: %s (valid: csv, arrow, lineproto)", c.Output.Format)
	}
	if c.Output.Precision < 0 || c.Output.Precision > 12 {
		return fmt.Errorf("precision must be between 0 and 12, got %d", c.Output.Precision)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, warn, error)", c.Logging.Level)
	}
	return nil
}

// IntegratorConfig returns the integrator settings.
func (c *Config) IntegratorConfig() integrator.Config {
	return integrator.Config{
		TimeInterval: c.Integration.TimeInterval,
		MaxError:     c.Integration.MaxError,
		MaxOrder:     c.Integration.MaxOrder,
		MaxHalvings:  c.Integration.MaxHalvings,
	}
}

// LinkSource exposes the link parameters as a params.Source.
func (c *Config) LinkSource() params.Source {
	return params.MapSource(c.LinkParameters)
}

// applyEnvOverrides applies ATNSIM_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ATNSIM_TIME_INTERVAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Integration.TimeInterval = f
		}
	}
	if v := os.Getenv("ATNSIM_MAX_ERROR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Integration.MaxError = f
		}
	}
	if v := os.Getenv("ATNSIM_BIOMASS_SCALE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Integration.BiomassScale = f
		}
	}
	if v := os.Getenv("ATNSIM_EQUATION_SET"); v != "" {
		config.Integration.EquationSet = v
	}

	if v := os.Getenv("ATNSIM_STORE_DRIVER"); v != "" {
		config.Store.Driver = v
	}
	if v := os.Getenv("ATNSIM_STORE_DSN"); v != "" {
		config.Store.DSN = v
	}

	if v := os.Getenv("ATNSIM_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
	if v := os.Getenv("ATNSIM_OUTPUT_FORMAT"); v != "" {
		config.Output.Format = strings.ToLower(v)
	}
	if v := os.Getenv("ATNSIM_INFLUX_TOKEN"); v != "" {
		config.Output.Influx.Token = v
	}

	if v := os.Getenv("ATNSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ATNSIM_METRICS_FILE"); v != "" {
		config.Telemetry.MetricsFile = v
	}
	if v := os.Getenv("ATNSIM_STRICT"); v != "" {
		config.Strict = v == "true" || v == "1"
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
