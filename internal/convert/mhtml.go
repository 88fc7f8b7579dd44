package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/kyudori/docbridge/internal/storage"
)

// MHTMLAdapter extracts the page markup from a single-file web archive
// (.mht). The MIME envelope library does the heavy lifting; when it cannot
// make sense of the archive, a plain message-part walker looks for the first
// text/html part itself.
type MHTMLAdapter struct {
	fs     storage.FileSystem
	logger *slog.Logger
}

// NewMHTMLAdapter creates an MHTML adapter
func NewMHTMLAdapter(fs storage.FileSystem, logger *slog.Logger) *MHTMLAdapter {
	if fs == nil {
		fs = storage.NewOSFileSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MHTMLAdapter{fs: fs, logger: logger}
}

// Name implements Adapter
func (a *MHTMLAdapter) Name() string {
	return "mhtml"
}

// IsAvailable implements Adapter. Extraction is in-process, no external tool.
func (a *MHTMLAdapter) IsAvailable() bool {
	return true
}

// Convert implements Adapter
func (a *MHTMLAdapter) Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error) {
	targetExt = normalizeTarget(targetExt)
	if targetExt != "html" {
		return "", &UnsupportedConversionError{SourceExt: ".mht", TargetExt: targetExt}
	}

	sourceAbs, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourcePath}
	}
	data, err := a.fs.ReadFile(sourceAbs)
	if err != nil {
		return "", &SourceNotFoundError{Path: sourceAbs}
	}
	if outDir == "" {
		outDir = filepath.Dir(sourceAbs)
	}

	html, err := a.extractHTML(ctx, data)
	if err != nil {
		return "", &ConversionError{Adapter: a.Name(), Path: sourceAbs, Err: err}
	}

	outputPath := filepath.Join(outDir, baseName(sourceAbs)+".html")
	if err := a.fs.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return "", &ConversionError{Adapter: a.Name(), Path: outputPath, Err: err}
	}

	a.logger.InfoContext(ctx, "converted document",
		"adapter", a.Name(),
		"source", sourceAbs,
		"output", outputPath,
	)
	return outputPath, nil
}

// extractHTML returns the first HTML document embedded in the archive.
func (a *MHTMLAdapter) extractHTML(ctx context.Context, data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err == nil && env.HTML != "" {
		return env.HTML, nil
	}
	if err != nil {
		a.logger.DebugContext(ctx, "envelope parse failed, walking parts directly",
			"error", err,
		)
	}

	html, err := walkForHTML(data)
	if err != nil {
		return "", err
	}
	if html == "" {
		return "", fmt.Errorf("no HTML content found in MHT file")
	}
	return html, nil
}

// walkForHTML parses the archive as a plain MIME message and walks its parts
// depth-first, returning the first part declared text/html.
func walkForHTML(data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse MIME message: %w", err)
	}
	return walkPart(
		msg.Header.Get("Content-Type"),
		msg.Header.Get("Content-Transfer-Encoding"),
		msg.Body,
	)
}

func walkPart(contentType, transferEncoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read MIME part: %w", err)
			}
			html, err := walkPart(
				part.Header.Get("Content-Type"),
				part.Header.Get("Content-Transfer-Encoding"),
				part,
			)
			if err != nil {
				return "", err
			}
			if html != "" {
				return html, nil
			}
		}
		return "", nil
	}

	if mediaType != "text/html" {
		return "", nil
	}

	content, err := io.ReadAll(decodeBody(body, transferEncoding))
	if err != nil {
		return "", fmt.Errorf("decode HTML part: %w", err)
	}
	return string(content), nil
}

// decodeBody unwraps the part's transfer encoding.
func decodeBody(body io.Reader, transferEncoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	default:
		return body
	}
}
