package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpx "github.com/Spok95/supplycover/internal/infra/http"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			a.store.Start(ctx)

			deps := httpx.Deps{
				Service:        a.engine,
				Log:            a.log,
				ExportPageSize: a.cfg.HTTP.ExportPageSize,
			}
			if a.cfg.Metrics.Enabled {
				deps.Metrics = a.metrics
				deps.Gatherer = a.registry
			}
			srv := httpx.New(a.cfg.HTTP.Addr, httpx.NewRouter(deps))

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			a.log.Info("HTTP server started", "addr", a.cfg.HTTP.Addr)

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					a.log.Error("http server error", "err", err)
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error("http shutdown", "err", err)
			}
			a.log.Info("graceful shutdown complete")
			return nil
		},
	}
}
