package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/citecheck/internal/api"
	"github.com/dgallion1/citecheck/internal/config"
	"github.com/dgallion1/citecheck/internal/extract"
	"github.com/dgallion1/citecheck/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes upload, verification and job endpoints over HTTP. All /api
routes require "Authorization: Bearer <api_key>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromViper(o.v)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			level := slog.LevelInfo
			if o.verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewJSONHandler(cmd.OutOrStdout(), &slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Serve(ctx, cfg, log)
		},
	}
	cmd.Flags().String("port", config.Default().Port, "listen port")
	o.bindFlags(cmd, map[string]string{"port": "port"})
	return cmd
}

// Serve runs the HTTP API and its job workers until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	p, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	defer extract.CloseGenerator(p.Generator())

	orch := pipeline.NewOrchestrator(cfg, p, log.With("component", "orchestrator"))
	orch.Start(ctx)

	srv, err := api.NewServer(orch, log, cfg)
	if err != nil {
		orch.Stop()
		return err
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	log.Info("starting citecheck", "port", cfg.Port, "generator", cfg.Generator, "policy", p.Policy())

	select {
	case err := <-errCh:
		orch.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Stop accepting uploads before the job queue closes.
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	orch.Stop()
	return nil
}
