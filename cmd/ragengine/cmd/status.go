package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexed document/chunk counts and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

type statusReport struct {
	IndexedDocuments int64 `json:"indexed_documents"`
	TotalChunks      int64 `json:"total_chunks"`
	QueueSize        int   `json:"queue_size"`
	Paused           bool  `json:"paused"`
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	state, err := buildState(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = state.Stop() }()

	stats, err := state.Backend.GetStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	report := statusReport{
		IndexedDocuments: stats.IndexedDocuments,
		TotalChunks:      stats.TotalChunks,
		QueueSize:        state.Queue.Size(),
		Paused:           state.Queue.IsPaused(),
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "documents: %d\n", report.IndexedDocuments)
	fmt.Fprintf(out, "chunks:    %d\n", report.TotalChunks)
	fmt.Fprintf(out, "queue:     %d pending (paused=%v)\n", report.QueueSize, report.Paused)
	return nil
}
