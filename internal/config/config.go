// Package config handles configuration loading and validation for PackEagle.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".packeagle"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
	// EnvPrefix prefixes environment overrides, e.g. PACKEAGLE_MODULES_DIR.
	EnvPrefix = "PACKEAGLE"
)

// Config holds all configuration for PackEagle.
type Config struct {
	// Modules describes the directory of extracted module files.
	Modules ModulesConfig `mapstructure:"modules" yaml:"modules" toml:"modules"`
	// Store contains graph store configuration.
	Store StoreConfig `mapstructure:"store" yaml:"store" toml:"store"`
	// Analysis bounds cross-module queries.
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis" toml:"analysis"`
	// Index contains indexing configuration.
	Index IndexConfig `mapstructure:"index" yaml:"index" toml:"index"`
	// GlobalEnv configures the environment object decoder.
	GlobalEnv GlobalEnvConfig `mapstructure:"globalenv" yaml:"globalenv" toml:"globalenv"`
	// Log configures diagnostics.
	Log LogConfig `mapstructure:"log" yaml:"log" toml:"log"`
}

// ModulesConfig describes the module directory.
type ModulesConfig struct {
	// Dir holds one <id>.js file per module.
	Dir string `mapstructure:"dir" yaml:"dir" toml:"dir"`
	// Include lists base name globs of module files.
	Include []string `mapstructure:"include" yaml:"include" toml:"include"`
	// Exclude lists .gitignore-style patterns to skip.
	Exclude []string `mapstructure:"exclude" yaml:"exclude" toml:"exclude"`
}

// StoreConfig holds graph store configuration.
type StoreConfig struct {
	// DBPath is the BadgerDB directory.
	DBPath string `mapstructure:"db_path" yaml:"db_path" toml:"db_path"`
	// Bundle is the namespace inside the store, typically a build id.
	Bundle string `mapstructure:"bundle" yaml:"bundle" toml:"bundle"`
}

// AnalysisConfig holds limits of the analyzer.
type AnalysisConfig struct {
	// VisitBudget bounds the worklist pops of one cross-module query.
	VisitBudget int `mapstructure:"visit_budget" yaml:"visit_budget" toml:"visit_budget"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	// Workers is the parse parallelism; 0 means one per CPU.
	Workers int `mapstructure:"workers" yaml:"workers" toml:"workers"`
}

// GlobalEnvConfig configures the environment decoder.
type GlobalEnvConfig struct {
	// Path is the global the environment object is assigned to.
	Path string `mapstructure:"path" yaml:"path" toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" toml:"level"`
}

// Load loads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Check if a specific config file was set via CLI flag (stored in global viper)
	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Modules.Dir == "" {
		return fmt.Errorf("modules.dir is required")
	}
	for _, p := range append(append([]string{}, c.Modules.Include...), c.Modules.Exclude...) {
		if _, err := filepath.Match(strings.TrimPrefix(p, "!"), ""); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}
	if c.Store.Bundle == "" || strings.Contains(c.Store.Bundle, ":") {
		return fmt.Errorf("store.bundle must be non-empty and must not contain ':', got %q", c.Store.Bundle)
	}
	if c.Analysis.VisitBudget <= 0 {
		return fmt.Errorf("analysis.visit_budget must be positive, got %d", c.Analysis.VisitBudget)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}
	if c.GlobalEnv.Path == "" {
		return fmt.Errorf("globalenv.path is required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a log.level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", level)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("modules.dir", "modules")
	v.SetDefault("modules.include", []string{"*.js"})
	v.SetDefault("modules.exclude", []string{
		"**/node_modules/**",
		"**/.git/**",
	})

	v.SetDefault("store.db_path", ".packeagle/graph.db")
	v.SetDefault("store.bundle", "default")

	v.SetDefault("analysis.visit_budget", 10000)
	v.SetDefault("index.workers", 0)
	v.SetDefault("globalenv.path", "window.GLOBAL_ENV")
	v.SetDefault("log.level", "info")
}
