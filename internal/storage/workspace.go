package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkspaceError represents a workspace-related failure
type WorkspaceError struct {
	Operation string
	Path      string
	Err       error
}

func (e *WorkspaceError) Error() string {
	msg := fmt.Sprintf("workspace error during %s", e.Operation)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}

// WorkspaceConfig holds configuration for the workspace manager
type WorkspaceConfig struct {
	BasePath   string
	DefaultTTL time.Duration
	Logger     *slog.Logger // Optional: custom logger
	FileSystem FileSystem   // Optional: custom filesystem (defaults to OS filesystem)
}

// WorkspaceManager hands out isolated per-request working directories for
// uploaded files and their conversion outputs, and sweeps stale ones.
type WorkspaceManager struct {
	basePath   string
	defaultTTL time.Duration
	logger     *slog.Logger
	fs         FileSystem
}

// NewWorkspaceManager creates a new workspace manager
func NewWorkspaceManager(config WorkspaceConfig) (*WorkspaceManager, error) {
	ctx := context.Background()

	// Set defaults
	if config.BasePath == "" {
		config.BasePath = "./workspace"
	}
	if config.DefaultTTL == 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.FileSystem == nil {
		config.FileSystem = NewOSFileSystem()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := config.FileSystem.MkdirAll(config.BasePath, 0755); err != nil {
		config.Logger.ErrorContext(ctx, "failed to create workspace base directory",
			"error", err,
			"path", config.BasePath,
		)
		return nil, &WorkspaceError{
			Operation: "init - create base directory",
			Path:      config.BasePath,
			Err:       err,
		}
	}

	config.Logger.InfoContext(ctx, "workspace manager initialized",
		"base_path", config.BasePath,
		"default_ttl", config.DefaultTTL,
	)

	return &WorkspaceManager{
		basePath:   config.BasePath,
		defaultTTL: config.DefaultTTL,
		logger:     config.Logger,
		fs:         config.FileSystem,
	}, nil
}

// Create allocates a fresh uniquely-named workspace directory and returns its path.
func (wm *WorkspaceManager) Create() (string, error) {
	ctx := context.Background()
	path := filepath.Join(wm.basePath, uuid.NewString())

	if err := wm.fs.MkdirAll(path, 0755); err != nil {
		wm.logger.ErrorContext(ctx, "failed to create workspace",
			"error", err,
			"path", path,
		)
		return "", &WorkspaceError{
			Operation: "create workspace",
			Path:      path,
			Err:       err,
		}
	}

	wm.logger.DebugContext(ctx, "workspace created", "path", path)
	return path, nil
}

// Remove deletes a workspace directory and everything in it. Paths outside
// the base directory are rejected.
func (wm *WorkspaceManager) Remove(path string) error {
	rel, err := filepath.Rel(wm.basePath, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return &WorkspaceError{
			Operation: "remove workspace",
			Path:      path,
			Err:       fmt.Errorf("path is not inside workspace base %s", wm.basePath),
		}
	}

	if err := wm.fs.RemoveAll(path); err != nil {
		return &WorkspaceError{
			Operation: "remove workspace",
			Path:      path,
			Err:       err,
		}
	}

	wm.logger.DebugContext(context.Background(), "workspace removed", "path", path)
	return nil
}

// Cleanup removes workspaces whose last modification is older than the TTL.
// A zero TTL uses the manager's default.
func (wm *WorkspaceManager) Cleanup(ttl time.Duration) (int64, error) {
	ctx := context.Background()
	if ttl == 0 {
		ttl = wm.defaultTTL
	}

	cutoff := time.Now().Add(-ttl)
	var removed int64

	entries, err := wm.fs.ReadDir(wm.basePath)
	if err != nil {
		wm.logger.ErrorContext(ctx, "failed to read workspace base for cleanup",
			"error", err,
			"dir", wm.basePath,
		)
		return 0, &WorkspaceError{
			Operation: "cleanup - read base directory",
			Path:      wm.basePath,
			Err:       err,
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := wm.fs.RemoveAll(filepath.Join(wm.basePath, entry.Name())); err == nil {
				removed++
			}
		}
	}

	wm.logger.InfoContext(ctx, "workspace cleanup completed",
		"removed", removed,
		"ttl", ttl,
	)

	return removed, nil
}

// IsAccessible checks if the workspace base directory exists
func (wm *WorkspaceManager) IsAccessible() bool {
	_, err := wm.fs.Stat(wm.basePath)
	return err == nil
}

// BasePath returns the workspace base directory
func (wm *WorkspaceManager) BasePath() string {
	return wm.basePath
}
