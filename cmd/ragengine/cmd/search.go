package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/katanaquant/ragengine/internal/query"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var threshold float64
	var useHybrid bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid search query against the indexed knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], topK, threshold, useHybrid, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum similarity score to keep a result")
	cmd.Flags().BoolVar(&useHybrid, "hybrid", true, "combine vector search with keyword search")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, topK int, threshold float64, useHybrid, jsonOutput bool) error {
	state, err := buildState(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = state.Stop() }()

	results, err := state.Query.Run(cmd.Context(), query.Request{
		Text: text, TopK: topK, Threshold: threshold, UseHybrid: useHybrid,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out := cmd.OutOrStdout()

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Score, r.Source)
		fmt.Fprintf(out, "   %s\n", truncate(r.Content, 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
