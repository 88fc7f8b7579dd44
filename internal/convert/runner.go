package convert

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
)

// Runner executes an external command and returns its combined stdout/stderr.
// A non-zero exit status is reported as a ToolExecutionError carrying the
// exit code and the captured output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs commands through os/exec, blocking until the child exits.
type execRunner struct{}

// NewExecRunner returns the default Runner backed by os/exec.
func NewExecRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &ToolExecutionError{
			Tool:     filepath.Base(name),
			ExitCode: exitCode,
			Output:   combined.String(),
			Err:      err,
		}
	}

	return combined.String(), nil
}
