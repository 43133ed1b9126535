// Package build runs the Elm compiler and serializes rebuild requests so
// that at most one compiler process exists at any time.
package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/specto/internal/config"
	"github.com/conneroisu/specto/internal/errors"
	"github.com/conneroisu/specto/internal/logging"
	"github.com/conneroisu/specto/internal/validation"
)

// DefaultOutput is the artifact written when no --output option is given.
const DefaultOutput = "index.html"

// Outcome is the result of one compiler run.
type Outcome struct {
	Success bool
	// ArtifactPath is where the compiler wrote its output. Only meaningful on success.
	ArtifactPath string
	// Output is the combined stdout and stderr of the compiler.
	Output   string
	Duration time.Duration
	// FinishedAt is when the build ended. Filled in by the Serializer if the
	// Builder leaves it zero.
	FinishedAt time.Time
	// Errors holds the compiler diagnostics parsed from Output on failure.
	Errors []*errors.ParsedError
	Err    error
}

// Builder performs one build. A compiler-reported failure is an Outcome with
// Success false, never a panic or a blocked call.
type Builder interface {
	Build(ctx context.Context) Outcome
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context) Outcome

// Build implements Builder.
func (f BuilderFunc) Build(ctx context.Context) Outcome { return f(ctx) }

// Compiler runs "<command> make <source> <options...>".
type Compiler struct {
	command string
	source  string
	options []string
	dir     string
	timeout time.Duration
	output  io.Writer
	logger  logging.Logger
}

// NewCompiler creates a compiler from build configuration. Compiler output
// is copied to output (if non-nil) after every run.
func NewCompiler(cfg config.BuildConfig, output io.Writer, logger logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Compiler{
		command: cfg.Command,
		source:  cfg.Source,
		options: append([]string(nil), cfg.Options...),
		dir:     cfg.Dir,
		timeout: cfg.Timeout,
		output:  output,
		logger:  logger.WithComponent("build"),
	}
}

// Args returns the argument list passed to the compiler executable.
func (c *Compiler) Args() []string {
	args := make([]string, 0, len(c.options)+2)
	args = append(args, "make", c.source)
	return append(args, c.options...)
}

// ArtifactPath returns the file the compiler writes, resolved against the
// working directory.
func (c *Compiler) ArtifactPath() string {
	path := OutputPath(c.options)
	if c.dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	return path
}

// Build implements Builder.
func (c *Compiler) Build(ctx context.Context) Outcome {
	artifact := c.ArtifactPath()

	if err := c.validateCommand(); err != nil {
		return Outcome{Err: errors.NewBuildError(errors.ErrCodeBuildFailed, "command validation failed", err)}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.command, c.Args()...)
	cmd.Dir = c.dir
	cmd.WaitDelay = time.Second

	c.logger.Debug(ctx, "Running compiler", "command", c.command, "args", strings.Join(c.Args(), " "))
	out, err := cmd.CombinedOutput()

	outcome := Outcome{
		ArtifactPath: artifact,
		Output:       string(out),
		Duration:     time.Since(start),
	}

	if c.output != nil && len(out) > 0 {
		_, _ = c.output.Write(out)
	}

	if err == nil {
		outcome.Success = true
		return outcome
	}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		outcome.Err = errors.NewBuildError(errors.ErrCodeBuildTimeout,
			fmt.Sprintf("compiler did not finish within %s", c.timeout), ctx.Err())
	case ctx.Err() != nil:
		outcome.Err = errors.NewBuildError(errors.ErrCodeBuildFailed, "build cancelled", ctx.Err())
	case stderrors.As(err, &exitErr):
		outcome.Err = errors.NewBuildError(errors.ErrCodeBuildFailed,
			fmt.Sprintf("compiler exited with status %d", exitErr.ExitCode()), err)
		outcome.Errors = errors.ParseCompilerOutput(outcome.Output)
	default:
		outcome.Err = errors.ErrCompilerNotFound(c.command, err)
	}

	return outcome
}

func (c *Compiler) validateCommand() error {
	if err := validation.ValidateCommand(c.command); err != nil {
		return err
	}
	return validation.ValidateArguments(c.options)
}

// OutputPath returns the artifact path selected by a compiler option list.
// Both "--output=<path>" and "--output <path>" are understood; the last one
// wins. Without either, DefaultOutput is returned.
func OutputPath(options []string) string {
	path := DefaultOutput
	for i := 0; i < len(options); i++ {
		opt := options[i]
		switch {
		case strings.HasPrefix(opt, "--output="):
			if v := strings.TrimPrefix(opt, "--output="); v != "" {
				path = v
			}
		case opt == "--output" && i+1 < len(options):
			i++
			path = options[i]
		}
	}
	return path
}
