package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cwmcp "github.com/deixis/cronwatch/internal/mcp"
	"github.com/deixis/cronwatch/internal/report"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMCPCmd(g *globals) *cobra.Command {
	var (
		httpAddr     string
		instructions bool
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), cwmcp.Instructions)
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.serve(ctx, httpAddr, dryRun)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	cmd.Flags().BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log mail and issues instead of sending them")
	return cmd
}

func (g *globals) serve(ctx context.Context, httpAddr string, dryRun bool) error {
	cfg, workspace, err := g.loadConfig()
	if err != nil {
		return err
	}

	engine := g.newEngine(ctx, cfg, workspace, dryRun)
	// Without a configured state dir, runs live in a temp dir for the
	// lifetime of the server so cron_inspect still works.
	disk := report.NewDiskStore(cfg.StateDirectory())
	dir, err := disk.Dir()
	if err != nil {
		return err
	}
	g.logger.Info("recording runs", zap.String("dir", dir))
	store := report.NewLRUStore(5, disk)
	engine.Store = store

	server := cwmcp.NewServer(engine, store)

	if httpAddr != "" {
		return g.serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func (g *globals) serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	g.logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
