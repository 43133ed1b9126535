package errors

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedError is one diagnostic block from the Elm compiler.
type ParsedError struct {
	Title   string `json:"title"`
	File    string `json:"file,omitempty"`
	Message string `json:"message"`
}

// FormatError renders the error for terminal output.
func (pe *ParsedError) FormatError() string {
	if pe.File == "" {
		return fmt.Sprintf("%s\n%s\n", pe.Title, pe.Message)
	}
	return fmt.Sprintf("%s (%s)\n%s\n", pe.Title, pe.File, pe.Message)
}

var (
	// -- TYPE MISMATCH ------------------------------------ src/Main.elm
	headerPattern = regexp.MustCompile(`^-- ([A-Z][A-Z0-9 ]*?) -+(?: (\S.*))?$`)
	ansiPattern   = regexp.MustCompile("\x1b\\[[0-9;]*m")
)

// ParseCompilerOutput splits Elm's report into one ParsedError per
// "-- TITLE ---- file" block. Output without any header becomes a single
// untitled error so nothing the compiler said is lost.
func ParseCompilerOutput(output string) []*ParsedError {
	output = ansiPattern.ReplaceAllString(output, "")
	if strings.TrimSpace(output) == "" {
		return nil
	}

	var (
		parsed  []*ParsedError
		current *ParsedError
		body    []string
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Message = strings.TrimSpace(strings.Join(body, "\n"))
		parsed = append(parsed, current)
		current, body = nil, nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &ParsedError{Title: strings.TrimSpace(m[1]), File: strings.TrimSpace(m[2])}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	if len(parsed) == 0 {
		return []*ParsedError{{Title: "COMPILER ERROR", Message: strings.TrimSpace(output)}}
	}

	return parsed
}
