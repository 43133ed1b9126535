package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/specto/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build [source] [-- compiler options...]",
	Short: "Compile once and exit",
	Long: `Run the compiler once with the same configuration the server uses and
exit non-zero if it fails.

Examples:
  specto build                          # elm make src/Main.elm
  specto build src/App.elm -- --optimize`,
	Args:         sourceArgs,
	RunE:         runBuild,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	if err := checkSetup(cfg); err != nil {
		return err
	}

	// Diagnostics are reprinted from the parsed outcome.
	compiler := build.NewCompiler(cfg.Build, io.Discard, logger)
	outcome := compiler.Build(context.Background())
	if !outcome.Success {
		for _, parsed := range outcome.Errors {
			fmt.Fprintln(os.Stderr, parsed.FormatError())
		}
		return outcome.Err
	}

	fmt.Printf("Built %s in %s\n", outcome.ArtifactPath, outcome.Duration.Round(1e6))
	return nil
}
