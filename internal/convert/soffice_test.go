package convert

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyudori/docbridge/internal/storage"
)

// fakeRunner records every invocation and can run a side effect in place of
// the real tool.
type fakeRunner struct {
	commands [][]string
	output   string
	err      error
	onRun    func(name string, args []string) error
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	if r.onRun != nil {
		if err := r.onRun(name, args); err != nil {
			return "", err
		}
	}
	return r.output, r.err
}

func TestSofficeConvert(t *testing.T) {
	fs := storage.NewMemMapFileSystem()
	writeSource(t, fs, "/docs/report.doc")
	require.NoError(t, fs.MkdirAll("/out", 0755))

	runner := &fakeRunner{
		onRun: func(name string, args []string) error {
			return fs.WriteFile("/out/report.pdf", []byte("%PDF"), 0644)
		},
	}
	adapter := NewSofficeAdapter(SofficeConfig{
		Runner:     runner,
		FileSystem: fs,
		BinaryPath: "/usr/bin/soffice",
	})

	output, err := adapter.Convert(context.Background(), "/docs/report.doc", "pdf", "/out")
	require.NoError(t, err)
	assert.Equal(t, "/out/report.pdf", output)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{
		"/usr/bin/soffice",
		"--headless",
		"--nologo",
		"--convert-to", "pdf",
		"--outdir", "/out",
		"/docs/report.doc",
	}, runner.commands[0])
}

func TestSofficeConvertMissingSource(t *testing.T) {
	fs := storage.NewMemMapFileSystem()
	adapter := NewSofficeAdapter(SofficeConfig{
		Runner:     &fakeRunner{},
		FileSystem: fs,
		BinaryPath: "/usr/bin/soffice",
	})

	_, err := adapter.Convert(context.Background(), "/docs/missing.doc", "pdf", "/out")

	var notFound *SourceNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSofficeConvertToolFailure(t *testing.T) {
	fs := storage.NewMemMapFileSystem()
	writeSource(t, fs, "/docs/report.doc")

	runner := &fakeRunner{err: &ToolExecutionError{Tool: "/usr/bin/soffice", ExitCode: 77}}
	adapter := NewSofficeAdapter(SofficeConfig{
		Runner:     runner,
		FileSystem: fs,
		BinaryPath: "/usr/bin/soffice",
	})

	_, err := adapter.Convert(context.Background(), "/docs/report.doc", "pdf", "/out")

	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 77, execErr.ExitCode)
}

func TestSofficeConvertNoOutputProduced(t *testing.T) {
	fs := storage.NewMemMapFileSystem()
	writeSource(t, fs, "/docs/report.doc")
	require.NoError(t, fs.MkdirAll("/out", 0755))

	// The tool exits zero but writes nothing
	adapter := NewSofficeAdapter(SofficeConfig{
		Runner:     &fakeRunner{output: "convert /docs/report.doc -> ???"},
		FileSystem: fs,
		BinaryPath: "/usr/bin/soffice",
	})

	_, err := adapter.Convert(context.Background(), "/docs/report.doc", "pdf", "/out")

	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Output, "???")
}

func TestSofficeFindOutputFuzzyMatch(t *testing.T) {
	fs := storage.NewMemMapFileSystem()
	writeSource(t, fs, "/docs/Report.doc")
	require.NoError(t, fs.MkdirAll("/out", 0755))

	// LibreOffice occasionally mangles the case of the base name
	runner := &fakeRunner{
		onRun: func(name string, args []string) error {
			return fs.WriteFile("/out/REPORT_1.pdf", []byte("%PDF"), 0644)
		},
	}
	adapter := NewSofficeAdapter(SofficeConfig{
		Runner:     runner,
		FileSystem: fs,
		BinaryPath: "/usr/bin/soffice",
	})

	output, err := adapter.Convert(context.Background(), "/docs/Report.doc", "pdf", "/out")
	require.NoError(t, err)
	assert.Equal(t, "/out/REPORT_1.pdf", output)
}

func TestSofficeBinaryDiscovery(t *testing.T) {
	t.Run("prefers soffice on PATH", func(t *testing.T) {
		adapter := NewSofficeAdapter(SofficeConfig{FileSystem: storage.NewMemMapFileSystem()})
		adapter.lookPath = func(file string) (string, error) {
			if file == "soffice" {
				return "/usr/local/bin/soffice", nil
			}
			return "", errors.New("not found")
		}

		assert.True(t, adapter.IsAvailable())
		bin, err := adapter.binary()
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/soffice", bin)
	})

	t.Run("falls back to libreoffice", func(t *testing.T) {
		adapter := NewSofficeAdapter(SofficeConfig{FileSystem: storage.NewMemMapFileSystem()})
		adapter.lookPath = func(file string) (string, error) {
			if file == "libreoffice" {
				return "/usr/bin/libreoffice", nil
			}
			return "", errors.New("not found")
		}

		bin, err := adapter.binary()
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/libreoffice", bin)
	})

	t.Run("falls back to the macOS install path", func(t *testing.T) {
		fs := storage.NewMemMapFileSystem()
		require.NoError(t, fs.MkdirAll(filepath.Dir(sofficeMacPath), 0755))
		require.NoError(t, fs.WriteFile(sofficeMacPath, []byte{}, 0755))

		adapter := NewSofficeAdapter(SofficeConfig{FileSystem: fs})
		adapter.lookPath = func(file string) (string, error) {
			return "", errors.New("not found")
		}

		bin, err := adapter.binary()
		require.NoError(t, err)
		assert.Equal(t, sofficeMacPath, bin)
	})

	t.Run("unavailable when nothing is installed", func(t *testing.T) {
		adapter := NewSofficeAdapter(SofficeConfig{FileSystem: storage.NewMemMapFileSystem()})
		adapter.lookPath = func(file string) (string, error) {
			return "", errors.New("not found")
		}

		assert.False(t, adapter.IsAvailable())
		_, err := adapter.binary()

		var unavailable *ToolUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Contains(t, unavailable.Error(), "LibreOffice")
	})
}
