package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/kyudori/docbridge/internal/convert"
	"github.com/kyudori/docbridge/internal/storage"
)

// Converter is the conversion surface the HTTP layer depends on.
type Converter interface {
	Convert(ctx context.Context, sourcePath, explicitTarget, outDir string) (*convert.Outcome, error)
	ConvertDirectory(ctx context.Context, dir, outDir string) (map[string][]string, error)
}

// Server is the conversion HTTP service
type Server struct {
	config     Config
	converter  Converter
	workspaces *storage.WorkspaceManager
	logger     *slog.Logger
}

// NewServer creates the HTTP service with its manager and workspace storage
func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	ttl, err := time.ParseDuration(cfg.WorkspaceTTL)
	if err != nil {
		logger.ErrorContext(context.Background(), "failed to parse workspace TTL",
			"error", err,
			"ttl", cfg.WorkspaceTTL,
		)
		return nil, fmt.Errorf("parse TTL: %w", err)
	}

	attemptTimeout, err := time.ParseDuration(cfg.ConvertTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse convert timeout: %w", err)
	}

	workspaces, err := storage.NewWorkspaceManager(storage.WorkspaceConfig{
		BasePath:   cfg.WorkspacePath,
		DefaultTTL: ttl,
		Logger:     logger,
	})
	if err != nil {
		logger.ErrorContext(context.Background(), "failed to initialize workspace manager",
			"error", err,
		)
		return nil, fmt.Errorf("workspace init: %w", err)
	}

	manager := convert.NewManager(convert.ManagerConfig{
		Logger:         logger,
		Zoom:           cfg.PDFZoom,
		AttemptTimeout: attemptTimeout,
	})

	return &Server{
		config:     cfg,
		converter:  manager,
		workspaces: workspaces,
		logger:     logger,
	}, nil
}

// NewServerWithConverter wires an explicit converter; used by tests.
func NewServerWithConverter(cfg Config, conv Converter, workspaces *storage.WorkspaceManager, logger *slog.Logger) *Server {
	return &Server{
		config:     cfg,
		converter:  conv,
		workspaces: workspaces,
		logger:     logger,
	}
}

// Handler builds the routed HTTP handler with all middleware applied
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})
	r.Use(corsHandler.Handler)

	r.Get("/", s.rootHandler)
	r.Get("/health", s.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)
		r.Get("/supported-formats", s.supportedFormatsHandler)
		r.Post("/convert", s.convertHandler)
		r.Post("/convert-upload", s.convertUploadHandler)
	})

	return r
}

// ListenAndServe starts the HTTP server and begins handling requests. A
// background sweep removes stale workspaces once per hour.
func (s *Server) ListenAndServe() error {
	go s.cleanupLoop(context.Background(), time.Hour)

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.InfoContext(context.Background(), "starting conversion server",
		"port", s.config.Port,
		"endpoints", []string{"/", "/health", "/supported-formats", "/convert", "/convert-upload"},
	)
	return http.ListenAndServe(addr, s.Handler())
}

// cleanupLoop sweeps stale workspaces at the given interval until ctx ends.
func (s *Server) cleanupLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.workspaces.Cleanup(0); err != nil {
				s.logger.WarnContext(ctx, "workspace cleanup sweep failed",
					"error", err,
				)
			}
		}
	}
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
