package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/specto/internal/config"
	"github.com/conneroisu/specto/internal/errors"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name     string
		options  []string
		expected string
	}{
		{"no options", nil, "index.html"},
		{"unrelated options", []string{"--debug", "--optimize"}, "index.html"},
		{"equals form", []string{"--output=main.js"}, "main.js"},
		{"separate form", []string{"--output", "public/app.js"}, "public/app.js"},
		{"last wins", []string{"--output=a.js", "--debug", "--output", "b.html"}, "b.html"},
		{"dangling flag", []string{"--output"}, "index.html"},
		{"empty value", []string{"--output="}, "index.html"},
		{"similar flag", []string{"--outputs=x.js"}, "index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, OutputPath(tt.options))
		})
	}
}

func TestCompilerArgs(t *testing.T) {
	c := NewCompiler(config.BuildConfig{
		Command: "elm",
		Source:  "src/Main.elm",
		Options: []string{"--debug", "--output=main.js"},
		Dir:     "/proj",
	}, nil, nil)

	assert.Equal(t, []string{"make", "src/Main.elm", "--debug", "--output=main.js"}, c.Args())
	assert.Equal(t, filepath.Join("/proj", "main.js"), c.ArtifactPath())
}

func TestCompilerArtifactPathAbsolute(t *testing.T) {
	c := NewCompiler(config.BuildConfig{
		Command: "elm",
		Source:  "src/Main.elm",
		Options: []string{"--output=/tmp/out.html"},
		Dir:     "/proj",
	}, nil, nil)

	assert.Equal(t, "/tmp/out.html", c.ArtifactPath())
}

// fakeCompiler writes an executable shell script standing in for elm.
func fakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script compiler stand-in requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "elm")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCompilerBuildSuccess(t *testing.T) {
	dir := t.TempDir()
	command := fakeCompiler(t, `echo "Success! Compiled 1 module."
echo "<html><body>$2</body></html>" > index.html`)

	var echoed bytes.Buffer
	c := NewCompiler(config.BuildConfig{Command: command, Source: "src/Main.elm", Dir: dir}, &echoed, nil)

	outcome := c.Build(context.Background())

	require.True(t, outcome.Success, "output: %s", outcome.Output)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, filepath.Join(dir, "index.html"), outcome.ArtifactPath)
	assert.Contains(t, outcome.Output, "Success!")
	assert.Contains(t, echoed.String(), "Success!")

	content, err := os.ReadFile(outcome.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "src/Main.elm")
}

func TestCompilerBuildFailure(t *testing.T) {
	command := fakeCompiler(t, `echo "-- TYPE MISMATCH ------------------------------------------------ src/Main.elm"
echo ""
echo "The 1st argument to text is not what I expect."
exit 1`)

	c := NewCompiler(config.BuildConfig{Command: command, Source: "src/Main.elm", Dir: t.TempDir()}, nil, nil)
	outcome := c.Build(context.Background())

	assert.False(t, outcome.Success)
	require.Error(t, outcome.Err)
	assert.True(t, errors.IsRecoverable(outcome.Err))
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "TYPE MISMATCH", outcome.Errors[0].Title)
	assert.Equal(t, "src/Main.elm", outcome.Errors[0].File)
}

func TestCompilerBuildTimeout(t *testing.T) {
	command := fakeCompiler(t, "exec sleep 5")

	c := NewCompiler(config.BuildConfig{
		Command: command,
		Source:  "src/Main.elm",
		Dir:     t.TempDir(),
		Timeout: 100 * time.Millisecond,
	}, nil, nil)

	start := time.Now()
	outcome := c.Build(context.Background())

	assert.False(t, outcome.Success)
	assert.Less(t, time.Since(start), 4*time.Second)
	se, ok := outcome.Err.(*errors.SpectoError)
	require.True(t, ok, "unexpected error %v", outcome.Err)
	assert.Equal(t, errors.ErrCodeBuildTimeout, se.Code)
}

func TestCompilerMissingBinary(t *testing.T) {
	c := NewCompiler(config.BuildConfig{
		Command: filepath.Join(t.TempDir(), "no-such-elm"),
		Source:  "src/Main.elm",
	}, nil, nil)

	outcome := c.Build(context.Background())

	assert.False(t, outcome.Success)
	se, ok := outcome.Err.(*errors.SpectoError)
	require.True(t, ok, "unexpected error %v", outcome.Err)
	assert.Equal(t, errors.ErrCodeCompilerNotFound, se.Code)
}

func TestCompilerRejectsControlCharactersInOptions(t *testing.T) {
	c := NewCompiler(config.BuildConfig{
		Command: "elm",
		Source:  "src/Main.elm",
		Options: []string{"--output=x.js\x00"},
	}, nil, nil)

	outcome := c.Build(context.Background())

	assert.False(t, outcome.Success)
	assert.Error(t, outcome.Err)
	assert.Empty(t, outcome.Output)
}
