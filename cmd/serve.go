package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the status API and scheduled crawls until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			scheduler, err := startScheduler(ctx, a)
			if err != nil {
				return err
			}
			if scheduler != nil {
				defer func() { <-scheduler.Stop().Done() }()
			}

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
				Handler:           api.NewServer(a.store, a.runs, a.logger.Named("api")).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("status server listening", zap.Int("port", a.cfg.Server.Port))
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown server: %w", err)
				}
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("serve: %w", err)
			}
		},
	}
}

// startScheduler wires the cron schedule when one is configured.
func startScheduler(ctx context.Context, a *app) (*cron.Cron, error) {
	expr := a.cfg.Crawl.Schedule
	if expr == "" {
		return nil, nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(expr, func() {
		summary, err := a.runOnce(ctx)
		if err != nil {
			a.logger.Error("scheduled crawl failed",
				zap.String("run_id", summary.RunID), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse crawl schedule %q: %w", expr, err)
	}
	scheduler.Start()
	a.logger.Info("crawl schedule active", zap.String("schedule", expr))
	return scheduler, nil
}
