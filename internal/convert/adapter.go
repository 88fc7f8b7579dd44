package convert

import (
	"context"
	"path/filepath"
	"strings"
)

// Adapter wraps one external conversion tool with a uniform probe/invoke
// contract. Implementations are stateless apart from a cached executable
// path resolved once on first use.
type Adapter interface {
	// Name identifies the adapter in logs and outcome records
	Name() string
	// IsAvailable probes whether the underlying tool is present
	IsAvailable() bool
	// Convert converts sourcePath to targetExt, writing into outDir, and
	// returns the path of the produced file
	Convert(ctx context.Context, sourcePath, targetExt, outDir string) (string, error)
}

// normalizeTarget lowercases a target extension and strips a leading dot.
func normalizeTarget(ext string) string {
	return strings.TrimPrefix(strings.ToLower(ext), ".")
}

// sourceExt returns the lowercased extension of a path, leading dot included.
func sourceExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// baseName returns the filename of a path without its extension.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
