package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"salesync/internal/app/server/api"
	"salesync/internal/infrastructure/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := postgres.New(cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("failed to close storage", "error", err)
		}
	}()

	mux, limiter := api.New(storage, cfg, log)
	defer limiter.Stop()

	srv := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "address", cfg.Server.RunAddress, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
