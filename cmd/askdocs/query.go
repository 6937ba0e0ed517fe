package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhad/askdocs/internal/models"
	"github.com/xhad/askdocs/pkg/agent"
)

func queryCMD() *cobra.Command {
	var (
		topK    int
		filters map[string]string
		asJSON  bool
	)

	var cmd = &cobra.Command{
		Use:   "query [question]",
		Short: "Answer a single question from the documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.agent.Init(ctx); err != nil {
				return err
			}

			opts := agent.QueryOptions{TopK: topK}
			if len(filters) > 0 {
				opts.Filter = models.Filter{}
				for k, v := range filters {
					opts.Filter[k] = v
				}
			}

			var result models.QueryResult
			if asJSON {
				result = a.agent.Query(ctx, args[0], opts)
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				spinner := getSpinner("Searching documentation...")
				result = a.agent.Query(ctx, args[0], opts)
				spinner.Finish()
				printResult(result)
			}

			if result.Error != "" {
				return fmt.Errorf("query failed: %s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "only search passages whose metadata matches, e.g. category=guide")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the result as JSON")

	return cmd
}
