package server

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the configuration for the conversion HTTP service
type Config struct {
	Port           int    `env:"PORT" env-default:"8000" env-description:"HTTP server port"`
	APIKey         string `env:"API_KEY" env-default:"your-secret-api-key-change-this" env-description:"API key expected in the X-API-Key header"`
	MaxUploadSize  int64  `env:"MAX_FILE_SIZE" env-default:"104857600" env-description:"Maximum upload size in bytes"`
	WorkspacePath  string `env:"WORKSPACE_PATH" env-default:"./workspace" env-description:"Base directory for upload workspaces"`
	WorkspaceTTL   string `env:"WORKSPACE_TTL" env-default:"24h" env-description:"TTL for stale workspace cleanup (e.g. 24h, 1h30m)"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" env-default:"http://localhost:3000" env-description:"Comma-separated CORS origins"`
	PDFZoom        float64 `env:"PDF_ZOOM" env-default:"0.9" env-description:"Scale factor for markup-to-PDF rendering"`
	ConvertTimeout string `env:"CONVERT_TIMEOUT" env-default:"0s" env-description:"Per-adapter attempt timeout, 0 disables"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
