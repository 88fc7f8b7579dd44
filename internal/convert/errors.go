package convert

import (
	"fmt"
)

// ToolUnavailableError indicates the external executable or library backing
// an adapter could not be located.
type ToolUnavailableError struct {
	Tool string
	Hint string
}

func (e *ToolUnavailableError) Error() string {
	msg := fmt.Sprintf("%s not found", e.Tool)
	if e.Hint != "" {
		msg += fmt.Sprintf(". %s", e.Hint)
	}
	return msg
}

// ToolExecutionError indicates the external tool ran but failed: non-zero
// exit status, or no recognizable output file after a clean exit.
type ToolExecutionError struct {
	Tool     string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Output != "" {
		// Truncate tool output if too long
		out := e.Output
		if len(out) > 500 {
			out = out[:500] + "..."
		}
		msg += fmt.Sprintf("\noutput: %s", out)
	}
	return msg
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// UnsupportedConversionError indicates no policy entry exists for a
// (source extension, target extension) pair and no fallback applied.
type UnsupportedConversionError struct {
	SourceExt string
	TargetExt string
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("conversion %s -> %s is not supported", e.SourceExt, e.TargetExt)
}

// SourceNotFoundError indicates the input file does not exist.
type SourceNotFoundError struct {
	Path string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source file not found: %s", e.Path)
}

// ConversionError wraps an adapter failure with the file it was working on.
type ConversionError struct {
	Adapter string
	Path    string
	Err     error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%s conversion failed", e.Adapter)
	if e.Path != "" {
		msg += fmt.Sprintf(" (file: %s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
