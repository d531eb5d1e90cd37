package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-engine/internal/api"
	"github.com/sells-group/lead-engine/internal/config"
	"github.com/sells-group/lead-engine/internal/monitoring"
	"github.com/sells-group/lead-engine/internal/session"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for research, enrichment and dispatch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		deps := api.Deps{
			Sessions: session.NewRegistry(),
			Research: env.Research,
			Enricher: env.Enrichment,
			Runs:     env.Store,
			Batch:    env.Batch,
		}
		// A nil *crm.Dispatcher must stay a nil interface.
		if env.CRM != nil {
			deps.Dispatcher = env.CRM
		}
		server := api.NewServer(deps, cfg.Server.AllowedOrigins)
		defer server.Close()

		if cfg.Monitoring.Enabled && env.Store != nil {
			go newChecker(env.Store).Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newChecker(runs monitoring.RunLister) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(runs),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}
