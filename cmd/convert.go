package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kyudori/docbridge/internal/convert"
)

var (
	convertTo      string
	convertOutDir  string
	convertZoom    float64
	convertTimeout time.Duration
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert [path]",
	Short: "Convert a file or every eligible file in a directory",
	Long: `Convert a file or directory of files using the configured adapter
fallback chains. Without --to, the default mapping per input extension
applies. Defaults to the current directory when no path is given.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		logger := loggerFromEnv()

		target := "."
		if len(args) == 1 {
			target = args[0]
		}
		targetAbs, err := filepath.Abs(target)
		if err != nil {
			logger.ErrorContext(ctx, "invalid path", "error", err, "path", target)
			os.Exit(1)
		}

		manager := convert.NewManager(convert.ManagerConfig{
			Logger:         logger,
			Zoom:           convertZoom,
			AttemptTimeout: convertTimeout,
		})
		defer manager.Close()

		info, err := os.Stat(targetAbs)
		if err != nil {
			logger.ErrorContext(ctx, "path not found", "error", err, "path", targetAbs)
			os.Exit(1)
		}

		results := make(map[string][]string)
		if info.IsDir() {
			results, err = manager.ConvertDirectory(ctx, targetAbs, convertOutDir)
			if err != nil {
				logger.ErrorContext(ctx, "directory conversion failed", "error", err)
				os.Exit(1)
			}
		} else {
			outDir := convertOutDir
			if outDir == "" {
				outDir = filepath.Dir(targetAbs)
			}
			outcome, err := manager.Convert(ctx, targetAbs, convertTo, outDir)
			if err != nil {
				logger.ErrorContext(ctx, "conversion failed", "error", err)
				os.Exit(1)
			}
			if len(outcome.Outputs) > 0 {
				results[targetAbs] = outcome.Outputs
			}
		}

		fmt.Println("\n=== Conversion Summary ===")
		for src, outs := range results {
			fmt.Println(src)
			for _, o := range outs {
				fmt.Printf("  -> %s\n", o)
			}
		}
		if len(results) == 0 {
			fmt.Println("(no files converted)")
		}
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "explicit target extension (e.g. pdf, docx)")
	convertCmd.Flags().StringVar(&convertOutDir, "out", "", "output directory (defaults to the source's directory)")
	convertCmd.Flags().Float64Var(&convertZoom, "zoom", convert.DefaultZoom, "markup-to-PDF render scale")
	convertCmd.Flags().DurationVar(&convertTimeout, "timeout", 0, "per-adapter attempt timeout (0 disables)")
	rootCmd.AddCommand(convertCmd)
}
