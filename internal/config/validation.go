package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/conneroisu/specto/internal/logging"
	"github.com/conneroisu/specto/internal/validation"
)

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}
	if err := validateWatchConfig(&config.Watch); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	host, port, err := net.SplitHostPort(config.Address)
	if err != nil {
		return fmt.Errorf("address %q must be host:port: %w", config.Address, err)
	}
	if strings.ContainsAny(host, " \t;&|$`") {
		return fmt.Errorf("host %q contains invalid characters", host)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port %q is not a number", port)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", portNum)
	}

	return nil
}

func validateBuildConfig(config *BuildConfig) error {
	if err := validation.ValidateCommand(config.Command); err != nil {
		return err
	}
	if err := validation.ValidateArguments(config.Options); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	if strings.TrimSpace(config.Source) == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", config.Timeout)
	}

	return nil
}

func validateWatchConfig(config *WatchConfig) error {
	if config.Debounce < 0 {
		return fmt.Errorf("debounce cannot be negative, got %s", config.Debounce)
	}
	for _, pattern := range config.Ignore {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("ignore patterns cannot be empty")
		}
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("format must be text or json, got %q", config.Format)
	}

	return nil
}
