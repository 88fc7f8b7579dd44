package convert

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kyudori/docbridge/internal/storage"
)

// pairKey identifies one supported direct conversion: source extension with
// leading dot, target extension without.
type pairKey struct {
	Source string
	Target string
}

// Attempt records one (target extension, adapter) try.
type Attempt struct {
	TargetExt string
	Adapter   string
	Output    string
	Err       error
}

// Outcome aggregates everything a single conversion request produced.
type Outcome struct {
	Source   string
	Outputs  []string
	Attempts []Attempt
}

// ManagerConfig holds configuration for the conversion manager
type ManagerConfig struct {
	Runner     Runner
	FileSystem storage.FileSystem
	Logger     *slog.Logger
	// Zoom is the markup-to-PDF render scale, default 0.9
	Zoom float64
	// KeepMarkup leaves HWP intermediate markup directories in place
	KeepMarkup bool
	// AttemptTimeout bounds each adapter attempt; zero disables the bound,
	// matching the tools' historical free-running behavior
	AttemptTimeout time.Duration
}

// Manager dispatches conversion requests across the adapter fallback chains.
// Adapter failures are swallowed into the Outcome; the only errors Convert
// itself returns are request-level ones (missing source).
type Manager struct {
	chains   map[pairKey][]Adapter
	soffice  Adapter
	abiword  Adapter
	renderer *PDFRenderer
	fs       storage.FileSystem
	logger   *slog.Logger
	timeout  time.Duration
}

// NewManager creates a manager with the full adapter set and policy table
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Runner == nil {
		cfg.Runner = NewExecRunner()
	}
	if cfg.FileSystem == nil {
		cfg.FileSystem = storage.NewOSFileSystem()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = DefaultZoom
	}

	renderer := NewPDFRenderer(cfg.Logger)

	soffice := NewSofficeAdapter(SofficeConfig{
		Runner:     cfg.Runner,
		FileSystem: cfg.FileSystem,
		Logger:     cfg.Logger,
	})
	abiword := NewAbiWordAdapter(AbiWordConfig{
		Runner:     cfg.Runner,
		FileSystem: cfg.FileSystem,
		Logger:     cfg.Logger,
	})
	spreadsheet := NewSpreadsheetAdapter(cfg.FileSystem, cfg.Logger)
	hwp := NewHWPAdapter(HWPConfig{
		Runner:     cfg.Runner,
		FileSystem: cfg.FileSystem,
		Renderer:   renderer,
		Logger:     cfg.Logger,
		Zoom:       cfg.Zoom,
		KeepMarkup: cfg.KeepMarkup,
	})
	mhtml := NewMHTMLAdapter(cfg.FileSystem, cfg.Logger)
	htmlpdf := NewHTMLPDFAdapter(renderer, cfg.FileSystem, cfg.Logger, cfg.Zoom)

	chains := map[pairKey][]Adapter{
		{".doc", "docx"}:  {soffice, abiword},
		{".doc", "pdf"}:   {soffice, abiword},
		{".docx", "pdf"}:  {soffice, abiword},
		{".rtf", "pdf"}:   {soffice, abiword},
		{".odt", "pdf"}:   {soffice, abiword},
		{".xls", "xlsx"}:  {soffice, spreadsheet},
		{".xlsm", "xlsx"}: {soffice, spreadsheet},
		{".ppt", "pptx"}:  {soffice},
		{".ppt", "pdf"}:   {soffice},
		{".hwp", "pdf"}:   {hwp},
		{".mht", "html"}:  {mhtml},
		{".html", "pdf"}:  {htmlpdf},
	}

	return &Manager{
		chains:   chains,
		soffice:  soffice,
		abiword:  abiword,
		renderer: renderer,
		fs:       cfg.FileSystem,
		logger:   cfg.Logger,
		timeout:  cfg.AttemptTimeout,
	}
}

// newManagerWithChains wires an explicit policy table; used by tests.
func newManagerWithChains(chains map[pairKey][]Adapter, soffice, abiword Adapter, fs storage.FileSystem, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if fs == nil {
		fs = storage.NewOSFileSystem()
	}
	return &Manager{
		chains:  chains,
		soffice: soffice,
		abiword: abiword,
		fs:      fs,
		logger:  logger,
	}
}

// Close releases the shared headless renderer
func (m *Manager) Close() error {
	if m.renderer != nil {
		return m.renderer.Close()
	}
	return nil
}

// Convert converts one source file. With an explicit target extension only
// that target is attempted; otherwise the mapping table decides. Outputs land
// in outDir (empty means next to the source). Adapter failures never abort
// the request; an empty Outputs list is the caller's signal that everything
// failed.
func (m *Manager) Convert(ctx context.Context, sourcePath, explicitTarget, outDir string) (*Outcome, error) {
	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, &SourceNotFoundError{Path: sourcePath}
	}
	if _, err := m.fs.Stat(sourceAbs); err != nil {
		return nil, &SourceNotFoundError{Path: sourceAbs}
	}

	srcExt := sourceExt(sourceAbs)
	explicit := explicitTarget != ""

	var targets []string
	if explicit {
		targets = []string{normalizeTarget(explicitTarget)}
	} else {
		targets = TargetsFor(srcExt)
	}

	outcome := &Outcome{Source: sourceAbs}
	for _, target := range targets {
		chain, ok := m.chains[pairKey{srcExt, target}]
		if !ok {
			if !explicit {
				// No policy entry and nothing requested: this input does not
				// produce this output by default.
				continue
			}
			chain = m.opportunisticChain(target)
		}
		m.runChain(ctx, chain, sourceAbs, target, outDir, outcome)
	}

	m.logger.InfoContext(ctx, "conversion request finished",
		"source", sourceAbs,
		"targets", targets,
		"outputs", len(outcome.Outputs),
		"attempts", len(outcome.Attempts),
	)
	return outcome, nil
}

// opportunisticChain is the fallback for an explicitly requested pair with no
// policy entry: LibreOffice handles almost anything, and AbiWord is worth a
// try for document-like targets.
func (m *Manager) opportunisticChain(target string) []Adapter {
	chain := []Adapter{m.soffice}
	if documentLikeTargets[target] {
		chain = append(chain, m.abiword)
	}
	return chain
}

// runChain tries each adapter in order until one produces an output,
// recording every attempt in the outcome.
func (m *Manager) runChain(ctx context.Context, chain []Adapter, sourceAbs, target, outDir string, outcome *Outcome) {
	for _, adapter := range chain {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if m.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, m.timeout)
		}
		output, err := adapter.Convert(attemptCtx, sourceAbs, target, outDir)
		if cancel != nil {
			cancel()
		}

		outcome.Attempts = append(outcome.Attempts, Attempt{
			TargetExt: target,
			Adapter:   adapter.Name(),
			Output:    output,
			Err:       err,
		})

		if err == nil {
			outcome.Outputs = append(outcome.Outputs, output)
			return
		}

		m.logger.WarnContext(ctx, "adapter attempt failed",
			"adapter", adapter.Name(),
			"source", sourceAbs,
			"target", target,
			"error", err,
		)
	}
}

// ConvertDirectory converts every eligible file directly inside dir. Entries
// are processed in name order; subdirectories and hidden files are skipped,
// as are files whose extension has no mapping entry. One file's failure does
// not stop the rest. Sources with zero outputs are omitted from the result.
// Outputs land in outDir; empty means next to the sources.
func (m *Manager) ConvertDirectory(ctx context.Context, dir, outDir string) (map[string][]string, error) {
	dirAbs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &SourceNotFoundError{Path: dir}
	}
	entries, err := m.fs.ReadDir(dirAbs)
	if err != nil {
		return nil, &SourceNotFoundError{Path: dirAbs}
	}
	if outDir == "" {
		outDir = dirAbs
	}

	results := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if !IsMappedExtension(filepath.Ext(entry.Name())) {
			continue
		}

		full := filepath.Join(dirAbs, entry.Name())
		outcome, err := m.Convert(ctx, full, "", outDir)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to convert file",
				"error", err,
				"source", full,
			)
			continue
		}
		if len(outcome.Outputs) > 0 {
			results[full] = outcome.Outputs
		}
	}

	return results, nil
}
