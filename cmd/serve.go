package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/kyudori/docbridge/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the conversion HTTP service",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := loggerFromEnv()

		cfg, err := server.LoadConfig()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load server config",
				"error", err,
			)
			os.Exit(1)
		}

		logger.InfoContext(ctx, "conversion server starting",
			"port", cfg.Port,
			"workspace_path", cfg.WorkspacePath,
			"workspace_ttl", cfg.WorkspaceTTL,
			"max_upload_size", cfg.MaxUploadSize,
		)

		srv, err := server.NewServer(cfg, logger)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create server",
				"error", err,
			)
			os.Exit(1)
		}

		if err := srv.ListenAndServe(); err != nil {
			logger.ErrorContext(ctx, "failed to start server",
				"error", err,
			)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
