package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func statsCMD() *cobra.Command {
	var asJSON bool

	var cmd = &cobra.Command{
		Use:   "stats",
		Short: "Show statistics for the documentation collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.agent.CollectionStats(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal stats: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			printStats(stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output stats as JSON")

	return cmd
}
