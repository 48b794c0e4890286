package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/guillermoBallester/stagecheck/internal/adapter/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the rule catalogue as MCP tools (stdio, or HTTP with --http-addr)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	cmd.Flags().String("http-addr", "", "serve streamable HTTP on this address instead of stdio (HTTP_ADDR)")
	cmd.Flags().String("http-bearer-token", "", "bearer token required on HTTP requests (HTTP_BEARER_TOKEN)")

	return cmd
}

func serve(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	provider, err := a.provider()
	if err != nil {
		return err
	}

	mcpServer := mcp.NewServer(version, a.catalog, a.runner(provider), a.explorer(provider), a.logger, a.tracer, a.inst)

	a.logger.Info("starting stagecheck MCP server",
		slog.String("version", version),
		slog.Int("rules", len(a.catalog)),
		slog.Int("max_rows", opts.cfg.MaxRows),
		slog.String("query_timeout", opts.cfg.QueryTimeout.String()),
	)

	if opts.cfg.HTTPAddr == "" {
		a.logger.Info("serving MCP over stdio")
		stdio := mcpserver.NewStdioServer(mcpServer)
		if err := stdio.Listen(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		a.logger.Info("shutdown complete")
		return nil
	}

	return serveHTTP(ctx, a, mcpserver.NewStreamableHTTPServer(mcpServer))
}

func serveHTTP(ctx context.Context, a *app, handler http.Handler) error {
	if a.cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "mcp")
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", recoveryMiddleware(bearerAuthMiddleware(handler, a.cfg.HTTPBearerToken), a.logger))
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP over HTTP", slog.String("addr", a.cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
