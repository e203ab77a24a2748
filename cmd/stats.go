package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/growthco/mailgraph/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print summary counts for the persisted graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("People:           %d\n", stats.People)
		fmt.Printf("Companies:        %d\n", stats.Companies)
		fmt.Printf("Interactions:     %d\n", stats.Interactions)
		fmt.Printf("Relationships:    %d\n", stats.Relationships)
		fmt.Printf("Expertise areas:  %d\n", stats.ExpertiseAreas)
		fmt.Printf("Emails processed: %d\n", stats.EmailsProcessed)
		fmt.Printf("Emails filtered:  %d\n", stats.EmailsFiltered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
