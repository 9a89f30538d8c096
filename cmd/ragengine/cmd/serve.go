package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ragenginehttp "github.com/katanaquant/ragengine/internal/server/http"
	ragenginemcp "github.com/katanaquant/ragengine/internal/server/mcp"
	"github.com/katanaquant/ragengine/pkg/version"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine: watcher, REST API, and MCP server",
		Long: `serve brings up the full engine: the filesystem watcher keeps
the index current, the REST API answers query/index/maintenance
requests over HTTP, and the MCP server exposes the same search and
indexing operations to editor and agent clients over stdio.

Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "http-addr", "", "HTTP listen address, overrides the config file's server.http_addr")
	return cmd
}

func runServe(ctx context.Context, addrOverride string) error {
	state, err := buildState(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = state.Stop() }()

	if err := state.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpAddr := state.Config.Server.HTTPAddr
	if addrOverride != "" {
		httpAddr = addrOverride
	}

	httpSrv := &http.Server{Addr: httpAddr, Handler: ragenginehttp.New(state, state.Logger)}
	go func() {
		state.Logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			state.Logger.Error("http server stopped with error", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	if state.Config.Server.MCPEnabled {
		mcpSrv := ragenginemcp.New(state, version.Version, state.Logger)
		go func() { errCh <- mcpSrv.Serve(ctx) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("mcp server exited", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
