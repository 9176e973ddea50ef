package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	coreerror "github.com/msto63/cclbridge/pkg/core/error"
)

// DefaultHelperProgram is the helper program the convenience caller targets
const DefaultHelperProgram = "ASD_SMART_ON_FHIR_UTILITIES:dba"

// Config holds the complete application configuration
type Config struct {
	General    GeneralConfig    `toml:"general" yaml:"general"`
	Log        LogConfig        `toml:"log" yaml:"log"`
	WebService WebServiceConfig `toml:"webservice" yaml:"webservice"`
	Helper     HelperConfig     `toml:"helper" yaml:"helper"`
	Relay      RelayConfig      `toml:"relay" yaml:"relay"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name        string `toml:"name" yaml:"name"`
	Environment string `toml:"environment" yaml:"environment"`
	LogLevel    string `toml:"log_level" yaml:"log_level"`
}

// LogConfig holds logging output settings
type LogConfig struct {
	Format   string         `toml:"format" yaml:"format"`
	Outputs  []string       `toml:"outputs" yaml:"outputs"`
	Rotation RotationConfig `toml:"rotation" yaml:"rotation"`
}

// RotationConfig holds log rotation settings
type RotationConfig struct {
	Enabled    bool `toml:"enabled" yaml:"enabled"`
	MaxSizeMB  int  `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" yaml:"compress"`
}

// WebServiceConfig holds the HTTP facility settings
type WebServiceConfig struct {
	// Empty BaseURL means no facility is available.
	BaseURL      string   `toml:"base_url" yaml:"base_url"`
	Token        string   `toml:"token" yaml:"token"`
	Timeout      Duration `toml:"timeout" yaml:"timeout"`
	FacilityName string   `toml:"facility_name" yaml:"facility_name"`
}

// HelperConfig holds the helper program settings
type HelperConfig struct {
	Program string `toml:"program" yaml:"program"`
}

// RelayConfig holds relay server and client settings
type RelayConfig struct {
	Host             string  `toml:"host" yaml:"host"`
	Port             int     `toml:"port" yaml:"port"`
	Address          string  `toml:"address" yaml:"address"`
	MetricsAddress   string  `toml:"metrics_address" yaml:"metrics_address"`
	RateLimit        float64 `toml:"rate_limit" yaml:"rate_limit"`
	RateBurst        int     `toml:"rate_burst" yaml:"rate_burst"`
	EnableReflection bool    `toml:"enable_reflection" yaml:"enable_reflection"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML or YAML file, chosen by extension
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, coreerror.Newf("config file not found: %s", path).
			WithCode(coreerror.CodeConfigNotFound).
			WithOperation("config.Load")
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, coreerror.Wrap(err, "failed to read config").
				WithCode(coreerror.CodeConfigInvalid).
				WithOperation("config.Load")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, coreerror.Wrap(err, "failed to parse config").
				WithCode(coreerror.CodeConfigInvalid).
				WithOperation("config.Load").
				WithDetail("path", path)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, coreerror.Wrap(err, "failed to parse config").
				WithCode(coreerror.CodeConfigInvalid).
				WithOperation("config.Load").
				WithDetail("path", path)
		}
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from the CCL_CONFIG environment variable or
// the default locations. With no file present the defaults are returned.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("CCL_CONFIG")
	if path == "" {
		defaultPaths := []string{
			"./configs/config.toml",
			"./config.toml",
			"./configs/config.yaml",
			filepath.Join(os.Getenv("HOME"), ".config/cclbridge/config.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		cfg := Default()
		cfg.expandEnvVars()
		return cfg, nil
	}

	return Load(path)
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		return coreerror.Newf("relay port out of range: %d", c.Relay.Port).
			WithCode(coreerror.CodeConfigInvalid).
			WithOperation("config.Validate")
	}
	if c.Relay.RateLimit < 0 {
		return coreerror.New("relay rate_limit must not be negative").
			WithCode(coreerror.CodeConfigInvalid).
			WithOperation("config.Validate")
	}
	if c.WebService.BaseURL != "" &&
		!strings.HasPrefix(c.WebService.BaseURL, "http://") &&
		!strings.HasPrefix(c.WebService.BaseURL, "https://") {
		return coreerror.Newf("webservice base_url must be http(s): %s", c.WebService.BaseURL).
			WithCode(coreerror.CodeConfigInvalid).
			WithOperation("config.Validate")
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "cclbridge"
	}
	if c.General.Environment == "" {
		c.General.Environment = "development"
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}

	// Log
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	// WebService
	if c.WebService.Timeout.Duration == 0 {
		c.WebService.Timeout.Duration = 60 * time.Second
	}
	if c.WebService.FacilityName == "" {
		c.WebService.FacilityName = "XMLCclRequest"
	}

	// Helper
	if c.Helper.Program == "" {
		c.Helper.Program = DefaultHelperProgram
	}

	// Relay
	if c.Relay.Host == "" {
		c.Relay.Host = "0.0.0.0"
	}
	if c.Relay.Port == 0 {
		c.Relay.Port = 9310
	}
	if c.Relay.Address == "" {
		c.Relay.Address = fmt.Sprintf("localhost:%d", c.Relay.Port)
	}
	if c.Relay.RateBurst == 0 {
		c.Relay.RateBurst = 10
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.WebService.BaseURL = os.ExpandEnv(c.WebService.BaseURL)
	c.WebService.Token = os.ExpandEnv(c.WebService.Token)
	for i, out := range c.Log.Outputs {
		c.Log.Outputs[i] = os.ExpandEnv(out)
	}
}

// RelayListenAddress returns the address the relay server binds to
func (c *Config) RelayListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Relay.Host, c.Relay.Port)
}
