package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kyudori/docbridge/internal/storage"
)

// macOS default installation path, probed when PATH lookup fails.
const sofficeMacPath = "/Applications/LibreOffice.app/Contents/MacOS/soffice"

// SofficeAdapter converts documents with a headless LibreOffice instance.
// It is the first choice for every office format pair in the policy table.
type SofficeAdapter struct {
	runner Runner
	fs     storage.FileSystem
	logger *slog.Logger

	// binary resolution is done once and cached for the process lifetime
	resolveOnce sync.Once
	binaryPath  string
	resolveErr  error

	lookPath func(file string) (string, error)
}

// SofficeConfig holds construction options for the LibreOffice adapter
type SofficeConfig struct {
	Runner     Runner
	FileSystem storage.FileSystem
	Logger     *slog.Logger
	// BinaryPath skips executable discovery when set
	BinaryPath string
}

// NewSofficeAdapter creates a LibreOffice adapter
func NewSofficeAdapter(cfg SofficeConfig) *SofficeAdapter {
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner()
	}
	if cfg.FileSystem == nil {
		cfg.FileSystem = storage.NewOSFileSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &SofficeAdapter{
		runner:   cfg.Runner,
		fs:       cfg.FileSystem,
		logger:   cfg.Logger,
		lookPath: exec.LookPath,
	}
	if cfg.BinaryPath != "" {
		a.resolveOnce.Do(func() { a.binaryPath = cfg.BinaryPath })
	}
	return a
}

// Name implements Adapter
func (a *SofficeAdapter) Name() string {
	return "libreoffice"
}

// IsAvailable implements Adapter
func (a *SofficeAdapter) IsAvailable() bool {
	_, err := a.binary()
	return err == nil
}

// binary resolves the soffice executable once: PATH lookup for soffice then
// libreoffice, then the fixed macOS install location.
func (a *SofficeAdapter) binary() (string, error) {
	a.resolveOnce.Do(func() {
		for _, name := range []string{"soffice", "libreoffice"} {
			if path, err := a.lookPath(name); err == nil {
				a.binaryPath = path
				return
			}
		}
		if _, err := a.fs.Stat(sofficeMacPath); err == nil {
			a.binaryPath = sofficeMacPath
			return
		}
		a.resolveErr = &ToolUnavailableError{
			Tool: "LibreOffice (soffice)",
			Hint: "Please install LibreOffice.",
		}
	})
	return a.binaryPath, a.resolveErr
}

// Convert implements Adapter
func (a *SofficeAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
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

	log, err := a.runner.Run(ctx, bin,
		"--headless",
		"--nologo",
		"--convert-to", targetExt,
		"--outdir", outDir,
		sourceAbs,
	)
	if err != nil {
		return "", err
	}

	output, err := a.findOutput(sourceAbs, targetExt, outDir)
	if err != nil {
		return "", &ToolExecutionError{
			Tool:   a.Name(),
			Output: log,
			Err:    err,
		}
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", output,
	)
	return output, nil
}

// findOutput locates the produced file. LibreOffice usually writes
// <base>.<ext>, but not always (it may mangle names with unusual characters),
// so a missing exact match falls back to a case-insensitive prefix+suffix
// scan of the output directory.
func (a *SofficeAdapter) findOutput(sourceAbs, targetExt, outDir string) (string, error) {
	base := baseName(sourceAbs)

	expected := filepath.Join(outDir, base+"."+targetExt)
	if _, err := a.fs.Stat(expected); err == nil {
		return expected, nil
	}

	entries, err := a.fs.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("read output directory %s: %w", outDir, err)
	}

	lowerBase := strings.ToLower(base)
	suffix := "." + targetExt
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if strings.HasPrefix(name, lowerBase) && strings.HasSuffix(name, suffix) {
			return filepath.Join(outDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("conversion did not produce expected output %s", expected)
}
