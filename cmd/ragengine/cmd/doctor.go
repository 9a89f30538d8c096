package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/katanaquant/ragengine/internal/config"
)

type checkResult struct {
	name string
	ok   bool
	err  error
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run startup diagnostics without leaving the engine running",
		Long: `doctor validates the configuration, confirms the knowledge base
and data directories are usable, and exercises the full startup
sequence (backend open, embedder init) before tearing everything back
down. Use it to diagnose a 'serve' that won't come up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
	return cmd
}

func runDoctor(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	var results []checkResult

	cfg, err := config.Load(configPath)
	results = append(results, checkResult{name: "load configuration", ok: err == nil, err: err})
	if err != nil {
		printChecks(out, results)
		return fmt.Errorf("configuration invalid, see above")
	}

	if info, statErr := os.Stat(cfg.Paths.KnowledgeBase); statErr != nil {
		results = append(results, checkResult{name: "knowledge base directory exists", ok: false, err: statErr})
	} else {
		results = append(results, checkResult{name: "knowledge base directory exists", ok: info.IsDir()})
	}

	if mkErr := os.MkdirAll(cfg.Paths.DataDir, 0o755); mkErr != nil {
		results = append(results, checkResult{name: "data directory writable", ok: false, err: mkErr})
	} else {
		results = append(results, checkResult{name: "data directory writable", ok: true})
	}

	state, buildErr := buildState(cmd.Context())
	results = append(results, checkResult{name: "startup sequence (backend + embedder)", ok: buildErr == nil, err: buildErr})
	if buildErr == nil {
		_ = state.Stop()
	}

	printChecks(out, results)

	for _, r := range results {
		if !r.ok {
			return fmt.Errorf("one or more checks failed")
		}
	}
	return nil
}

func printChecks(out io.Writer, results []checkResult) {
	for _, r := range results {
		status := "ok"
		if !r.ok {
			status = "FAIL"
		}
		if r.err != nil {
			fmt.Fprintf(out, "[%s] %s: %v\n", status, r.name, r.err)
			continue
		}
		fmt.Fprintf(out, "[%s] %s\n", status, r.name)
	}
}
