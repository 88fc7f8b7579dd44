package convert

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// DefaultZoom is the scale factor applied when rendering markup to PDF.
const DefaultZoom = 0.9

// pageFitCSS pins the page to A4 with no margins and scales content to fit.
// It is applied after any tool-provided stylesheet so its rules win the
// cascade.
const pageFitCSS = `
	@page { size: A4; margin: 0; }
	html, body { width: 210mm; height: 297mm; margin: 0; padding: 0; overflow: hidden; }
	* { box-sizing: border-box; max-width: 100%; }
	img, table, div { max-width: 100%; height: auto; }
`

// documentCSS is the looser style used for plain HTML sources.
const documentCSS = `
	@page { size: A4; margin: 20mm; }
	body { font-family: 'DejaVu Sans', sans-serif; font-size: 12pt; line-height: 1.4; }
	img { max-width: 100%; height: auto; }
	table { width: 100%; border-collapse: collapse; }
	td, th { padding: 4px; border: 1px solid #ccc; }
`

// Stylesheet is one entry in the cascade handed to the renderer. Exactly one
// of Path or Content is set.
type Stylesheet struct {
	Path    string
	Content string
}

// fileURL builds a file scheme URL for a local path, escaping characters
// like spaces and '#' that would otherwise be misread as URL syntax.
func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

// composeStylesheets builds the renderer cascade: tool-provided sheets keep
// their order and the fixed rules go last, so the fixed rules take
// precedence.
func composeStylesheets(toolSheets []Stylesheet, fixed string) []Stylesheet {
	sheets := append([]Stylesheet(nil), toolSheets...)
	return append(sheets, Stylesheet{Content: fixed})
}

// PDFRenderer renders a markup file to PDF through a headless Chromium
// instance. The browser is launched lazily on first use and reused.
type PDFRenderer struct {
	logger *slog.Logger

	initOnce sync.Once
	pw       *playwright.Playwright
	browser  playwright.Browser
	initErr  error
}

// NewPDFRenderer creates a renderer. The browser is not launched until the
// first render or availability probe.
func NewPDFRenderer(logger *slog.Logger) *PDFRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFRenderer{logger: logger}
}

func (r *PDFRenderer) ensure() error {
	r.initOnce.Do(func() {
		pw, err := playwright.Run()
		if err != nil {
			r.initErr = &ToolUnavailableError{
				Tool: "headless renderer (playwright)",
				Hint: "Run 'playwright install chromium' or install the driver.",
			}
			return
		}
		browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(true),
		})
		if err != nil {
			if stopErr := pw.Stop(); stopErr != nil {
				r.logger.Debug("error stopping playwright", "error", stopErr)
			}
			r.initErr = &ToolUnavailableError{
				Tool: "chromium",
				Hint: "Failed to launch the headless browser.",
			}
			return
		}
		r.pw = pw
		r.browser = browser
	})
	return r.initErr
}

// IsAvailable reports whether the headless browser can be launched
func (r *PDFRenderer) IsAvailable() bool {
	return r.ensure() == nil
}

// Close shuts down the browser and the driver
func (r *PDFRenderer) Close() error {
	var firstErr error
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Render loads the markup file, applies the stylesheet cascade, and writes a
// PDF scaled by zoom to outPath.
func (r *PDFRenderer) Render(ctx context.Context, markupPath string, sheets []Stylesheet, zoom float64, outPath string) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if zoom <= 0 {
		zoom = DefaultZoom
	}

	page, err := r.browser.NewPage()
	if err != nil {
		return &ConversionError{Adapter: "renderer", Path: markupPath, Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			r.logger.Debug("error closing page", "error", closeErr)
		}
	}()

	if _, err := page.Goto(fileURL(markupPath), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	}); err != nil {
		return &ConversionError{Adapter: "renderer", Path: markupPath, Err: err}
	}

	for _, sheet := range sheets {
		opts := playwright.PageAddStyleTagOptions{}
		if sheet.Path != "" {
			opts.Path = playwright.String(sheet.Path)
		} else {
			opts.Content = playwright.String(sheet.Content)
		}
		if _, err := page.AddStyleTag(opts); err != nil {
			return &ConversionError{Adapter: "renderer", Path: markupPath, Err: err}
		}
	}

	if _, err := page.PDF(playwright.PagePdfOptions{
		Path:            playwright.String(outPath),
		Format:          playwright.String("A4"),
		Scale:           playwright.Float(zoom),
		PrintBackground: playwright.Bool(true),
		Margin: &playwright.Margin{
			Top:    playwright.String("0"),
			Right:  playwright.String("0"),
			Bottom: playwright.String("0"),
			Left:   playwright.String("0"),
		},
	}); err != nil {
		return &ConversionError{Adapter: "renderer", Path: markupPath, Err: err}
	}

	r.logger.InfoContext(ctx, "rendered markup to pdf",
		"markup", markupPath,
		"output", outPath,
		"zoom", zoom,
	)
	return nil
}
