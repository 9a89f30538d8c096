package cmd

import (
	"context"
	"fmt"

	"github.com/katanaquant/ragengine/internal/config"
	"github.com/katanaquant/ragengine/internal/orchestrator"
)

// buildState loads the layered config and wires a fresh AppState
// without starting it; callers decide whether they need the watcher
// (Start) or just a one-shot pass over the backend.
func buildState(ctx context.Context) (*orchestrator.AppState, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	state, err := orchestrator.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return state, nil
}
