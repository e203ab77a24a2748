package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthco/mailgraph/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "mailgraph",
	Short: "Email relationship graph extraction pipeline",
	Long:  "Filters noise out of email exports, groups conversations into threads, extracts people, companies, and expertise via Claude, and persists the resulting relationship graph.",
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
