package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/kyudori/docbridge/internal/storage"
)

// markupIndexName is the primary markup file hwp5html writes.
const markupIndexName = "index.xhtml"

// markupStylesName is the optional stylesheet hwp5html writes next to it.
const markupStylesName = "styles.css"

// HWPAdapter converts HWP word-processor files to PDF. It chains two steps:
// hwp5html extracts the document into a markup directory, then the headless
// renderer turns that markup into a page-fit PDF. The intermediate markup
// tree is removed afterwards unless KeepMarkup is set.
type HWPAdapter struct {
	runner     Runner
	fs         storage.FileSystem
	renderer   *PDFRenderer
	logger     *slog.Logger
	zoom       float64
	keepMarkup bool

	resolveOnce sync.Once
	binaryPath  string
	resolveErr  error

	lookPath func(file string) (string, error)
}

// HWPConfig holds construction options for the HWP adapter
type HWPConfig struct {
	Runner     Runner
	FileSystem storage.FileSystem
	Renderer   *PDFRenderer
	Logger     *slog.Logger
	// Zoom is the render scale factor, default 0.9
	Zoom float64
	// KeepMarkup leaves the intermediate markup directory in place
	KeepMarkup bool
	BinaryPath string
}

// NewHWPAdapter creates an HWP adapter
func NewHWPAdapter(cfg HWPConfig) *HWPAdapter {
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner()
	}
	if cfg.FileSystem == nil {
		cfg.FileSystem = storage.NewOSFileSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NewPDFRenderer(cfg.Logger)
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}
	a := &HWPAdapter{
		runner:     cfg.Runner,
		fs:         cfg.FileSystem,
		renderer:   cfg.Renderer,
		logger:     cfg.Logger,
		zoom:       cfg.Zoom,
		keepMarkup: cfg.KeepMarkup,
		lookPath:   exec.LookPath,
	}
	if cfg.BinaryPath != "" {
		a.resolveOnce.Do(func() { a.binaryPath = cfg.BinaryPath })
	}
	return a
}

// Name implements Adapter
func (a *HWPAdapter) Name() string {
	return "hwp5html"
}

// IsAvailable implements Adapter. Both the extraction CLI and the renderer
// must be usable.
func (a *HWPAdapter) IsAvailable() bool {
	if _, err := a.binary(); err != nil {
		return false
	}
	return a.renderer.IsAvailable()
}

func (a *HWPAdapter) binary() (string, error) {
	a.resolveOnce.Do(func() {
		path, err := a.lookPath("hwp5html")
		if err != nil {
			a.resolveErr = &ToolUnavailableError{
				Tool: "hwp5html",
				Hint: "Install pyhwp or hwp5 tools.",
			}
			return
		}
		a.binaryPath = path
	})
	return a.binaryPath, a.resolveErr
}

// extract runs hwp5html and returns the markup directory it produced. The
// primary markup file must exist afterwards; the stylesheet is optional.
func (a *HWPAdapter) extract(ctx context.Context, sourceAbs, outDir string) (string, error) {
	bin, err := a.binary()
	if err != nil {
		return "", err
	}

	markupDir := filepath.Join(outDir, baseName(sourceAbs))
	log, err := a.runner.Run(ctx, bin, sourceAbs, "--output", markupDir)
	if err != nil {
		return "", err
	}

	indexPath := filepath.Join(markupDir, markupIndexName)
	if _, err := a.fs.Stat(indexPath); err != nil {
		return "", &ToolExecutionError{
			Tool:   a.Name(),
			Output: log,
			Err:    fmt.Errorf("%s not found in %s", markupIndexName, markupDir),
		}
	}

	return markupDir, nil
}

// Convert implements Adapter. Only the "pdf" target is meaningful for HWP
// input; anything else is rejected before any tool runs.
func (a *HWPAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
	targetExt = normalizeTarget(targetExt)
	if targetExt != "pdf" {
		return "", &UnsupportedConversionError{SourceExt: ".hwp", TargetExt: targetExt}
	}

	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourcePath}
	}
	if _, err := a.fs.Stat(sourceAbs); err != nil {
		return "", &SourceNotFoundError{Path: sourceAbs}
	}
	if outDir == "" {
		outDir = filepath.Dir(sourceAbs)
	}

	markupDir, err := a.extract(ctx, sourceAbs, outDir)
	if err != nil {
		return "", err
	}
	if !a.keepMarkup {
		// The markup tree goes away whether rendering works or not.
		defer func() {
			if rmErr := a.fs.RemoveAll(markupDir); rmErr != nil {
				a.logger.WarnContext(ctx, "failed to remove markup directory",
					"error", rmErr,
					"dir", markupDir,
				)
			}
		}()
	}

	var toolSheets []Stylesheet
	stylesPath := filepath.Join(markupDir, markupStylesName)
	if _, err := a.fs.Stat(stylesPath); err == nil {
		toolSheets = append(toolSheets, Stylesheet{Path: stylesPath})
	}
	sheets := composeStylesheets(toolSheets, pageFitCSS)

	outputPDF := filepath.Join(outDir, baseName(sourceAbs)+".pdf")
	indexPath := filepath.Join(markupDir, markupIndexName)
	if err := a.renderer.Render(ctx, indexPath, sheets, a.zoom, outputPDF); err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", outputPDF,
	)
	return outputPDF, nil
}

// HTMLPDFAdapter renders a plain HTML file to PDF with document styling.
type HTMLPDFAdapter struct {
	renderer *PDFRenderer
	fs       storage.FileSystem
	logger   *slog.Logger
	zoom     float64
}

// NewHTMLPDFAdapter creates an HTML-to-PDF adapter sharing the given renderer
func NewHTMLPDFAdapter(renderer *PDFRenderer, fs storage.FileSystem, logger *slog.Logger, zoom float64) *HTMLPDFAdapter {
	if fs == nil {
		fs = storage.NewOSFileSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = NewPDFRenderer(logger)
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &HTMLPDFAdapter{renderer: renderer, fs: fs, logger: logger, zoom: zoom}
}

// Name implements Adapter
func (a *HTMLPDFAdapter) Name() string {
	return "html-renderer"
}

// IsAvailable implements Adapter
func (a *HTMLPDFAdapter) IsAvailable() bool {
	return a.renderer.IsAvailable()
}

// Convert implements Adapter
func (a *HTMLPDFAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
	targetExt = normalizeTarget(targetExt)
	if targetExt != "pdf" {
		return "", &UnsupportedConversionError{SourceExt: ".html", TargetExt: targetExt}
	}

	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourcePath}
	}
	if _, err := a.fs.Stat(sourceAbs); err != nil {
		return "", &SourceNotFoundError{Path: sourceAbs}
	}
	if outDir == "" {
		outDir = filepath.Dir(sourceAbs)
	}

	outputPDF := filepath.Join(outDir, baseName(sourceAbs)+".pdf")
	sheets := []Stylesheet{{Content: documentCSS}}
	if err := a.renderer.Render(ctx, sourceAbs, sheets, a.zoom, outputPDF); err != nil {
		return "", err
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", outputPDF,
	)
	return outputPDF, nil
}
