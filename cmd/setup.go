package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/specto/internal/config"
	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
)

// sourceArgs allows at most one positional argument before "--".
func sourceArgs(cmd *cobra.Command, args []string) error {
	source, _ := splitArgs(cmd, args)
	if len(source) > 1 {
		return fmt.Errorf("expected at most one source file, got %d (put compiler options after --)", len(source))
	}
	return nil
}

// splitArgs separates positional arguments from the passthrough options
// that follow "--".
func splitArgs(cmd *cobra.Command, args []string) (positional, passthrough []string) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return args, nil
	}
	return args[:dash], args[dash:]
}

// loadConfig applies the source argument and passthrough options on top of
// the other configuration sources and loads the result.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	positional, passthrough := splitArgs(cmd, args)
	if len(positional) == 1 {
		viper.Set("build.source", positional[0])
	}
	if len(passthrough) > 0 {
		viper.Set("build.options", passthrough)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to load configuration", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	loggerConfig := logging.DefaultConfig()
	loggerConfig.Level = level
	loggerConfig.Format = cfg.Log.Format

	return logging.NewLogger(loggerConfig), nil
}

// checkSetup reports the fatal setup errors that make serving pointless.
func checkSetup(cfg *config.Config) error {
	source := cfg.Build.Source
	if cfg.Build.Dir != "" && !filepath.IsAbs(source) {
		source = filepath.Join(cfg.Build.Dir, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return errors.ErrSourceNotFound(source, err)
	}
	if info.IsDir() {
		return errors.ErrSourceNotFound(source, fmt.Errorf("%s is a directory", source))
	}

	if _, err := exec.LookPath(cfg.Build.Command); err != nil {
		return errors.ErrCompilerNotFound(cfg.Build.Command, err)
	}

	return nil
}
