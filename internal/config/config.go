// Package config loads dbcheck settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/willibrandon/dbcheck/internal/connstr"
	"github.com/willibrandon/dbcheck/internal/logger"
)

// Parser names accepted by the parser key.
const (
	ParserStrict = "strict"
	ParserLegacy = "legacy"
)

// ErrURLNotSet is returned when neither an explicit connection string nor
// the configured environment variable provides one.
var ErrURLNotSet = errors.New("connection string not set")

// Config represents the dbcheck configuration.
type Config struct {
	EnvFile string        `mapstructure:"env_file"`
	EnvVar  string        `mapstructure:"env_var"`
	URL     string        `mapstructure:"url"`
	Parser  string        `mapstructure:"parser"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Timeout time.Duration `mapstructure:"timeout"`
	Output  string        `mapstructure:"output"`
	Verbose bool          `mapstructure:"verbose"`
	Log     LogConfig     `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// TLSConfig holds server certificate verification settings.
type TLSConfig struct {
	Verify bool   `mapstructure:"verify"`
	CAFile string `mapstructure:"ca_file"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"env-file": "env_file",
	"env-var":  "env_var",
	"url":      "url",
	"ca-file":  "tls.ca_file",
	"timeout":  "timeout",
	"output":   "output",
	"verbose":  "verbose",
	"log-file": "log.file",
}

// Load reads configuration from defaults, an optional YAML file, DBCHECK_*
// environment variables and flags, in increasing order of precedence.
// If configPath is empty, the default locations are searched and a missing
// file is not an error. flags may be nil.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("DBCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	applyDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "dbcheck"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "dbcheck"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	cfg.EnvFile = expandPath(cfg.EnvFile)
	cfg.TLS.CAFile = expandPath(cfg.TLS.CAFile)
	cfg.Log.File = expandPath(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults sets default configuration values.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("env_file", ".env")
	v.SetDefault("env_var", "DATABASE_URL")
	v.SetDefault("url", "")
	v.SetDefault("parser", ParserStrict)

	v.SetDefault("tls.verify", true)
	v.SetDefault("tls.ca_file", connstr.DefaultCAPath)

	// Zero keeps the driver's own connect timeout.
	v.SetDefault("timeout", "0s")

	v.SetDefault("output", "text")
	v.SetDefault("verbose", false)

	v.SetDefault("log.file", logger.DefaultPath())
	v.SetDefault("log.level", "info")
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.EnvVar == "" {
		return fmt.Errorf("env_var must not be empty")
	}

	switch c.Parser {
	case ParserStrict, ParserLegacy:
	default:
		return fmt.Errorf("parser must be one of: strict, legacy")
	}

	if c.TLS.Verify && c.TLS.CAFile == "" {
		return fmt.Errorf("tls.ca_file is required when tls.verify is true")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	switch strings.ToLower(c.Output) {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("output must be one of: text, json, yaml")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

// ResolveURL returns the connection string to check: the explicit url if
// set, otherwise the value of the configured environment variable.
// lookup is usually os.LookupEnv.
func ResolveURL(c *Config, lookup func(string) (string, bool)) (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}
	raw, ok := lookup(c.EnvVar)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrURLNotSet, c.EnvVar)
	}
	return raw, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
