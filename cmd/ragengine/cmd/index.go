package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/ignore"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Walk the knowledge base and index every file",
		Long: `index performs a one-shot pass over the configured knowledge base
directory, admitting every file the .gitignore rules don't exclude,
then waits for the pipeline to drain before exiting.

Use 'ragengine serve' instead to keep indexing running in the
background and pick up future file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "reprocess files even if their content hash is unchanged")
	return cmd
}

func runIndex(cmd *cobra.Command, force bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	state, err := buildState(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = state.Stop() }()

	if err := state.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	matcher := ignore.New()
	root := state.Config.Paths.KnowledgeBase
	if err := matcher.AddFromFile(filepath.Join(root, ".gitignore"), ""); err != nil {
		fmt.Fprintf(os.Stderr, "warning: no root .gitignore to load: %v\n", err)
	}

	admitted := 0
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		state.IndexPath(path, domain.PriorityNormal, force)
		admitted++
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	fmt.Fprintf(out, "admitted %d files, draining queue...\n", admitted)

	for {
		if state.Queue.Size() == 0 && state.Queue.InFlight() == 0 {
			stats := state.Coordinator.Stats()
			if stats.ChunkQueueSize == 0 && stats.EmbedQueueSize == 0 && stats.StoreQueueSize == 0 &&
				stats.ChunkActive == 0 && stats.EmbedActive == 0 && stats.StoreActive == 0 {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	docStats, err := state.Backend.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}
	fmt.Fprintf(out, "done: %d documents, %d chunks indexed\n", docStats.IndexedDocuments, docStats.TotalChunks)
	return nil
}
