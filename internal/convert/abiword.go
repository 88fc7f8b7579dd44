package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/kyudori/docbridge/internal/storage"
)

// headlessDisplay is the placeholder display number used by the container
// image; seeing it means no real X server is reachable.
const headlessDisplay = ":99"

// AbiWordAdapter converts word-processing documents with AbiWord. It is the
// fallback when LibreOffice fails or is missing. AbiWord needs a display
// server, so headless environments wrap the invocation in xvfb-run.
type AbiWordAdapter struct {
	runner Runner
	fs     storage.FileSystem
	logger *slog.Logger

	resolveOnce sync.Once
	binaryPath  string
	resolveErr  error

	lookPath func(file string) (string, error)
	getenv   func(key string) string
}

// AbiWordConfig holds construction options for the AbiWord adapter
type AbiWordConfig struct {
	Runner     Runner
	FileSystem storage.FileSystem
	Logger     *slog.Logger
	BinaryPath string
}

// NewAbiWordAdapter creates an AbiWord adapter
func NewAbiWordAdapter(cfg AbiWordConfig) *AbiWordAdapter {
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner()
	}
	if cfg.FileSystem == nil {
		cfg.FileSystem = storage.NewOSFileSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &AbiWordAdapter{
		runner:   cfg.Runner,
		fs:       cfg.FileSystem,
		logger:   cfg.Logger,
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
	if cfg.BinaryPath != "" {
		a.resolveOnce.Do(func() { a.binaryPath = cfg.BinaryPath })
	}
	return a
}

// Name implements Adapter
func (a *AbiWordAdapter) Name() string {
	return "abiword"
}

// IsAvailable implements Adapter
func (a *AbiWordAdapter) IsAvailable() bool {
	_, err := a.binary()
	return err == nil
}

func (a *AbiWordAdapter) binary() (string, error) {
	a.resolveOnce.Do(func() {
		path, err := a.lookPath("abiword")
		if err != nil {
			a.resolveErr = &ToolUnavailableError{
				Tool: "AbiWord",
				Hint: "Please install AbiWord.",
			}
			return
		}
		a.binaryPath = path
	})
	return a.binaryPath, a.resolveErr
}

// buildCommand assembles the AbiWord argument vector, wrapping it in
// xvfb-run when no usable display is present.
func (a *AbiWordAdapter) buildCommand(bin, sourceAbs, targetExt string) ([]string, error) {
	args := []string{
		bin,
		fmt.Sprintf("--to=%s", targetExt),
		sourceAbs,
		"--plugin=AbiCommand",
	}

	display := a.getenv("DISPLAY")
	if display == "" || display == headlessDisplay {
		xvfb, err := a.lookPath("xvfb-run")
		if err != nil {
			return nil, &ToolUnavailableError{
				Tool: "xvfb-run",
				Hint: "Required for headless AbiWord operation.",
			}
		}
		args = append([]string{xvfb, "-a"}, args...)
	}

	return args, nil
}

// Convert implements Adapter. AbiWord always writes its output next to the
// source file; the result is then relocated into outDir, replacing any
// pre-existing file of the same name.
func (a *AbiWordAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
	bin, err := a.binary()
	if err != nil {
		return "", err
	}

	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourcePath}
	}
	if _, err := a.fs.Stat(sourceAbs); err != nil {
		return "", &SourceNotFoundError{Path: sourceAbs}
	}

	targetExt = normalizeTarget(targetExt)
	if outDir == "" {
		outDir = filepath.Dir(sourceAbs)
	}

	cmd, err := a.buildCommand(bin, sourceAbs, targetExt)
	if err != nil {
		return "", err
	}

	if _, err := a.runner.Run(ctx, cmd[0], cmd[1:]...); err != nil {
		return "", err
	}

	produced := filepath.Join(filepath.Dir(sourceAbs), baseName(sourceAbs)+"."+targetExt)
	if _, err := a.fs.Stat(produced); err != nil {
		return "", &ToolExecutionError{
			Tool: a.Name(),
			Err:  fmt.Errorf("conversion did not produce expected output: %s", produced),
		}
	}

	final := filepath.Join(outDir, filepath.Base(produced))
	if final != produced {
		if _, err := a.fs.Stat(final); err == nil {
			if err := a.fs.Remove(final); err != nil {
				return "", &ConversionError{Adapter: a.Name(), Path: final, Err: err}
			}
		}
		if err := a.fs.Rename(produced, final); err != nil {
			return "", &ConversionError{Adapter: a.Name(), Path: produced, Err: err}
		}
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", final,
	)
	return final, nil
}
