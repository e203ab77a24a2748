package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/growthco/mailgraph/internal/model"
	"github.com/growthco/mailgraph/internal/oracle"
	"github.com/growthco/mailgraph/internal/pipeline"
	"github.com/growthco/mailgraph/internal/store"
	"github.com/growthco/mailgraph/pkg/anthropic"
)

var (
	processInput  string
	processDryRun bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process an email export into the relationship graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		emails, err := pipeline.ReadEmails(processInput)
		if err != nil {
			return err
		}

		rules := pipeline.DefaultFilterRules()
		if cfg.Filter.RulesPath != "" {
			if rules, err = pipeline.LoadFilterRules(cfg.Filter.RulesPath); err != nil {
				return err
			}
		}
		if cfg.Filter.BulkThreshold > 0 {
			rules.BulkThreshold = cfg.Filter.BulkThreshold
		}
		filter, err := pipeline.NewFilter(rules)
		if err != nil {
			return err
		}

		apiKey := cfg.Oracle.Key
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return eris.New("process: no Anthropic API key configured")
		}
		orc := oracle.NewClaudeOracle(
			anthropic.NewClient(apiKey),
			cfg.Oracle.Model,
			int64(cfg.Oracle.MaxTokens),
			cfg.Oracle.Timeout(),
			cfg.Oracle.RequestsPerSecond,
		)

		var st store.Store
		if !processDryRun {
			st, err = store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, nil)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		orch := pipeline.NewOrchestrator(filter, orc, st, cfg.Pipeline.MaxConcurrency)
		report, err := orch.Run(ctx, emails)
		if err != nil {
			return err
		}

		printReport(report)
		return nil
	},
}

func printReport(report *model.ProcessingReport) {
	fmt.Printf("Emails:       %d\n", report.TotalEmails)
	fmt.Printf("Filtered:     %d\n", report.FilteredCount)
	fmt.Printf("Threads:      %d\n", report.ThreadCount)
	fmt.Printf("Interactions: %d\n", report.InteractionCount)
	fmt.Printf("Errors:       %d\n", report.ErrorCount)

	if report.ErrorCount > 0 {
		zap.L().Warn("process: run completed with errors", zap.Int("errors", report.ErrorCount))
	}
}

func init() {
	processCmd.Flags().StringVar(&processInput, "input", "", "path to email export JSON (required)")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "run without writing to the store")
	processCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(processCmd)
}
