// Package config provides configuration management for specto using Viper
// for loading from files, environment variables and command-line flags.
//
// Values come from (highest priority first) flags bound by the cmd package,
// SPECTO_* environment variables (optionally seeded from a .env file), and a
// .specto.yml file. Load applies defaults for anything left unset and
// validates the result.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultAddress  = "localhost:9000"
	DefaultCommand  = "elm"
	DefaultSource   = "src/Main.elm"
	DefaultTimeout  = 2 * time.Minute
	DefaultDebounce = 100 * time.Millisecond
)

// Keys lists every configuration key. Binding them lets environment
// variables reach Unmarshal even when no file or flag mentions the key.
var Keys = []string{
	"server.address",
	"server.allowed_origins",
	"build.command",
	"build.source",
	"build.options",
	"build.dir",
	"build.timeout",
	"watch.root",
	"watch.debounce",
	"watch.include_created",
	"watch.ignore",
	"log.level",
	"log.format",
}

// DefaultIgnore lists path segments whose changes never trigger a rebuild.
var DefaultIgnore = []string{"elm-stuff", ".git", "node_modules"}

type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Build  BuildConfig  `mapstructure:"build" yaml:"build"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address" yaml:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type BuildConfig struct {
	// Command is the compiler executable; "make <source> <options>" is appended.
	Command string   `mapstructure:"command" yaml:"command"`
	Source  string   `mapstructure:"source" yaml:"source"`
	Options []string `mapstructure:"options" yaml:"options"`
	Dir     string   `mapstructure:"dir" yaml:"dir,omitempty"`
	// Timeout bounds one compiler run. Zero means no limit.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type WatchConfig struct {
	Root           string        `mapstructure:"root" yaml:"root"`
	Debounce       time.Duration `mapstructure:"debounce" yaml:"debounce"`
	IncludeCreated bool          `mapstructure:"include_created" yaml:"include_created"`
	Ignore         []string      `mapstructure:"ignore" yaml:"ignore"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load builds a Config from the global viper instance.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Address == "" {
		config.Server.Address = DefaultAddress
	}

	if config.Build.Command == "" {
		config.Build.Command = DefaultCommand
	}
	if config.Build.Source == "" {
		config.Build.Source = DefaultSource
	}
	if !viper.IsSet("build.timeout") {
		config.Build.Timeout = DefaultTimeout
	}

	// Workaround for viper slice handling when set from env or flags.
	if len(config.Build.Options) == 0 && viper.IsSet("build.options") {
		config.Build.Options = viper.GetStringSlice("build.options")
	}

	if config.Watch.Root == "" {
		config.Watch.Root = filepath.Dir(config.Build.Source)
		if config.Build.Dir != "" && !filepath.IsAbs(config.Watch.Root) {
			config.Watch.Root = filepath.Join(config.Build.Dir, config.Watch.Root)
		}
	}
	if !viper.IsSet("watch.debounce") {
		config.Watch.Debounce = DefaultDebounce
	}
	if !viper.IsSet("watch.include_created") {
		config.Watch.IncludeCreated = true
	}
	if !viper.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = append([]string(nil), DefaultIgnore...)
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}
