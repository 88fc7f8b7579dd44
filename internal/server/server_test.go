package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyudori/docbridge/internal/convert"
	"github.com/kyudori/docbridge/internal/storage"
)

const testAPIKey = "test-key"

// stubConverter lets each test script the conversion surface.
type stubConverter struct {
	convertFn func(ctx context.Context, sourcePath, explicitTarget, outDir string) (*convert.Outcome, error)
	dirFn     func(ctx context.Context, dir, outDir string) (map[string][]string, error)
}

func (s *stubConverter) Convert(ctx context.Context, sourcePath, explicitTarget, outDir string) (*convert.Outcome, error) {
	if s.convertFn == nil {
		return &convert.Outcome{Source: sourcePath}, nil
	}
	return s.convertFn(ctx, sourcePath, explicitTarget, outDir)
}

func (s *stubConverter) ConvertDirectory(ctx context.Context, dir, outDir string) (map[string][]string, error) {
	if s.dirFn == nil {
		return map[string][]string{}, nil
	}
	return s.dirFn(ctx, dir, outDir)
}

func newTestServer(t *testing.T, conv Converter) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workspaces, err := storage.NewWorkspaceManager(storage.WorkspaceConfig{
		BasePath: filepath.Join(t.TempDir(), "workspace"),
		Logger:   logger,
	})
	require.NoError(t, err)

	cfg := Config{
		Port:           8000,
		APIKey:         testAPIKey,
		MaxUploadSize:  1 << 20,
		AllowedOrigins: "http://localhost:3000",
	}
	return NewServerWithConverter(cfg, conv, workspaces, logger)
}

func TestRootAndHealthNeedNoAuth(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})
	handler := srv.Handler()

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)

		var body statusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body.Status)
	}
}

func TestHealthReportsInaccessibleWorkspace(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})
	require.NoError(t, os.RemoveAll(srv.workspaces.BasePath()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", rec.Header().Get("X-XSS-Protection"))
}

func TestAPIKeyEnforcement(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})
	handler := srv.Handler()

	t.Run("missing key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/supported-formats", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/supported-formats", nil)
		req.Header.Set("X-API-Key", "nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/supported-formats", nil)
		req.Header.Set("X-API-Key", testAPIKey)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSupportedFormats(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	req := httptest.NewRequest(http.MethodGet, "/supported-formats", nil)
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		SupportedFormats map[string][]string `json:"supported_formats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"pdf"}, body.SupportedFormats[".doc"])
	assert.Equal(t, []string{"xlsx"}, body.SupportedFormats[".xls"])
}

func postConvert(t *testing.T, handler http.Handler, body ConvertRequest) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(payload))
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestConvertMissingInput(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	rec := postConvert(t, srv.Handler(), ConvertRequest{
		InputPath: filepath.Join(t.TempDir(), "missing.doc"),
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "report.doc")
	require.NoError(t, os.WriteFile(source, []byte("doc"), 0644))

	var gotTarget, gotOutDir string
	conv := &stubConverter{
		convertFn: func(_ context.Context, sourcePath, explicitTarget, outDir string) (*convert.Outcome, error) {
			gotTarget = explicitTarget
			gotOutDir = outDir
			return &convert.Outcome{
				Source:  sourcePath,
				Outputs: []string{filepath.Join(outDir, "report.pdf")},
			}, nil
		},
	}
	srv := newTestServer(t, conv)

	rec := postConvert(t, srv.Handler(), ConvertRequest{InputPath: source, ConvertTo: "pdf"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pdf", gotTarget)
	assert.Equal(t, dir, gotOutDir)

	var body ConvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.TotalFiles)
	assert.Equal(t, []string{filepath.Join(dir, "report.pdf")}, body.ConvertedFiles[source])
}

func TestConvertDirectoryRequest(t *testing.T) {
	dir := t.TempDir()

	var gotOutDir string
	conv := &stubConverter{
		dirFn: func(_ context.Context, d, outDir string) (map[string][]string, error) {
			gotOutDir = outDir
			return map[string][]string{
				filepath.Join(d, "a.doc"): {filepath.Join(outDir, "a.pdf")},
				filepath.Join(d, "b.xls"): {filepath.Join(outDir, "b.xlsx")},
			}, nil
		},
	}
	srv := newTestServer(t, conv)

	rec := postConvert(t, srv.Handler(), ConvertRequest{InputPath: dir})

	require.Equal(t, http.StatusOK, rec.Code)
	// Without an explicit output path the outputs land in the input directory
	assert.Equal(t, dir, gotOutDir)

	var body ConvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalFiles)
}

func TestConvertDirectoryRequestWithOutputPath(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "converted")

	var gotOutDir string
	conv := &stubConverter{
		dirFn: func(_ context.Context, d, out string) (map[string][]string, error) {
			gotOutDir = out
			return map[string][]string{
				filepath.Join(d, "a.doc"): {filepath.Join(out, "a.pdf")},
			}, nil
		},
	}
	srv := newTestServer(t, conv)

	rec := postConvert(t, srv.Handler(), ConvertRequest{InputPath: dir, OutputPath: outDir})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, outDir, gotOutDir)

	// The handler creates the requested output directory up front
	info, err := os.Stat(outDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConvertNoOutputs(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "report.doc")
	require.NoError(t, os.WriteFile(source, []byte("doc"), 0644))

	srv := newTestServer(t, &stubConverter{})

	rec := postConvert(t, srv.Handler(), ConvertRequest{InputPath: source})

	require.Equal(t, http.StatusOK, rec.Code)

	var body ConvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.TotalFiles)
	assert.Equal(t, "No files were converted.", body.Message)
}

func uploadRequest(t *testing.T, filename string, content []byte, convertTo string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if convertTo != "" {
		require.NoError(t, mw.WriteField("convert_to", convertTo))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert-upload", &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestConvertUpload(t *testing.T) {
	conv := &stubConverter{
		convertFn: func(_ context.Context, sourcePath, explicitTarget, outDir string) (*convert.Outcome, error) {
			// The upload must land inside the workspace before conversion
			if _, err := os.Stat(sourcePath); err != nil {
				return nil, err
			}
			output := filepath.Join(outDir, "report.pdf")
			if err := os.WriteFile(output, []byte("%PDF converted"), 0644); err != nil {
				return nil, err
			}
			return &convert.Outcome{Source: sourcePath, Outputs: []string{output}}, nil
		},
	}
	srv := newTestServer(t, conv)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "report.doc", []byte("legacy doc content"), "pdf"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF converted", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"report.pdf"`)

	// The per-request workspace is gone after the response
	entries, err := os.ReadDir(srv.workspaces.BasePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvertUploadRejectsExtension(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "malware.exe", []byte("MZ"), ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Detail, ".exe")
}

func TestConvertUploadRejectsOversize(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})
	srv.config.MaxUploadSize = 16

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "report.doc", bytes.Repeat([]byte("x"), 64), ""))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestConvertUploadMissingFileField(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("convert_to", "pdf"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert-upload", &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertUploadNothingProduced(t *testing.T) {
	srv := newTestServer(t, &stubConverter{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, uploadRequest(t, "report.doc", []byte("doc"), "pdf"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000"}, splitOrigins("http://localhost:3000"))
	assert.Equal(t,
		[]string{"http://a.example", "http://b.example"},
		splitOrigins(" http://a.example , http://b.example ,"),
	)
	assert.Empty(t, splitOrigins(""))
}
