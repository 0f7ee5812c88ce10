package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmiles2012/Virgin-AI-OPS-prototype-sub003/internal/webserver"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// probeInterval is how often serve re-checks backend availability.
const probeInterval = 30 * time.Second

func newServeCommand() *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the decision engine HTTP API",
		Long: `Start the decision engine HTTP API.

Endpoints:
  POST /api/analyze          Score a scenario and build recommendations
  GET  /api/insights         Aggregates over every analysis
  GET  /api/categories       Supported scenario types and their factors
  POST /api/quick-recommend  Canned plan for a scenario type and urgency
  GET  /api/health           Capabilities and backend status
  POST /api/outcomes         Report how a recommendation played out
  POST /api/train            Start a backend training run
  GET  /api/train            Training status

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.Close() //nolint:errcheck

			srv, err := webserver.New(webserver.Config{
				Addr:        cfg.Addr(),
				CORSOrigins: cfg.Server.CORSOrigins,
				Deps:        eng.deps(),
				Logger:      slog.Default(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "opsdecide listening on http://%s\n", cfg.Addr()) //nolint:errcheck

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				slog.Info("Shutdown requested")
				return nil
			})
			if eng.adapter != nil {
				g.Go(func() error {
					probeBackend(gctx, eng.adapter.Available, probeInterval)
					return nil
				})
			}
			err = g.Wait()
			// Restore default signal handling so a second signal ends the
			// process while the engine closes.
			stop()
			return err
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "Host to bind (overrides config)")

	return cmd
}

// probeBackend checks backend availability on a ticker and logs changes
// until ctx is done.
func probeBackend(ctx context.Context, available func() bool, every time.Duration) {
	last := available()
	slog.Info("Analysis backend status", "available", last)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if now := available(); now != last {
				slog.Warn("Analysis backend availability changed", "available", now)
				last = now
			}
		}
	}
}
