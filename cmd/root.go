package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/landmark-labs/sitescan/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sitescan",
	Short: "Satellite imagery anomaly detection pipeline",
	Long:  "Fetches multispectral scenes, detects spectral anomalies with an isolation forest, extracts candidate site coordinates, and scores archaeological likelihood gated on data provenance.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
