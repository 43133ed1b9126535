// Package cmd provides the specto command-line interface.
//
// Configuration is resolved from, highest priority first:
//
//  1. command-line flags and arguments
//  2. SPECTO_* environment variables (a .env file in the working directory is
//     loaded first and never overrides variables already set)
//  3. the config file: --config, then SPECTO_CONFIG_FILE, then .specto.yml
//  4. built-in defaults
//
// Keys map to environment variables by upper-casing and replacing dots with
// underscores, so watch.debounce becomes SPECTO_WATCH_DEBOUNCE.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/specto/internal/config"
)

var cfgFile string

// rootCmd serves the project when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "specto [source] [-- compiler options...]",
	Short: "Live-reloading development server for Elm",
	Long: `specto compiles an Elm program, serves the result and reloads every open
browser tab after each successful rebuild.

The source defaults to src/Main.elm and its directory is watched recursively.
Everything after "--" is passed to "elm make" unchanged; an --output option
there selects the artifact that is served (default index.html).

Examples:
  specto                                  # build and serve src/Main.elm
  specto src/App.elm -a 0.0.0.0:8000      # other entry point and address
  specto -- --debug                       # pass --debug to elm make
  specto -- --output=public/index.html    # serve public/index.html`,
	Args:          sourceArgs,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().SetNormalizeFunc(normalizeFlagName)
	rootCmd.Flags().SetNormalizeFunc(normalizeFlagName)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .specto.yml, can also use SPECTO_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.Flags().StringP("address", "a", config.DefaultAddress, "address to listen on")
	rootCmd.Flags().Duration("debounce", config.DefaultDebounce, "quiet period before a change triggers a rebuild (0 disables)")
	rootCmd.Flags().Duration("timeout", config.DefaultTimeout, "kill a compiler run after this long (0 disables)")

	_ = viper.BindPFlag("server.address", rootCmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("watch.debounce", rootCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("build.timeout", rootCmd.Flags().Lookup("timeout"))
}

// normalizeFlagName accepts --log_level as well as --log-level.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// initConfig wires viper to the config file and environment.
func initConfig() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SPECTO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".specto")
	}

	viper.SetEnvPrefix("SPECTO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for _, key := range config.Keys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && viper.ConfigFileUsed() != "" {
		fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
	}
}
