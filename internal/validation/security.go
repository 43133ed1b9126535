// Package validation checks values that end up on a compiler command line.
package validation

import (
	"fmt"
	"strings"
)

// controlChars can never be part of a command-line argument.
var controlChars = []string{"\x00", "\n", "\r"}

// shellMeta have no business in a compiler executable name. A command
// carrying one almost always comes from a broken config or environment
// variable.
var shellMeta = []string{";", "&", "|", "$", "`", "<", ">", "\x00", "\n", "\r"}

// ValidateArgument validates a single compiler option. Options are passed
// to the compiler verbatim and never through a shell, so only control
// characters are rejected.
func ValidateArgument(arg string) error {
	return rejectAny(arg, controlChars)
}

// ValidateCommand validates the compiler executable name or path.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if strings.ContainsAny(command, " \t") {
		return fmt.Errorf("command '%s' must be a single executable, pass options separately", command)
	}
	if err := rejectAny(command, shellMeta); err != nil {
		return fmt.Errorf("invalid command '%s': %w", command, err)
	}
	return nil
}

// ValidateArguments validates every option, reporting the first offender.
func ValidateArguments(args []string) error {
	for _, arg := range args {
		if err := ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}
	return nil
}

func rejectAny(value string, chars []string) error {
	for _, char := range chars {
		if strings.Contains(value, char) {
			return fmt.Errorf("contains dangerous character: %q", char)
		}
	}
	return nil
}
