package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/fd2w-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fd2w-etl/internal/adapter/kafka"
	"github.com/couchcryptid/fd2w-etl/internal/app"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
	"github.com/couchcryptid/fd2w-etl/internal/runcache"
)

func newServeCmd(flags *sourceFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Load the forecast and serve the records over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			rt := newRuntime(cfg, observability.NewMetrics())
			return closeAll(rt, runServe(cmd, rt))
		},
	}
}

func runServe(cmd *cobra.Command, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger

	profile, err := loadProfile(cmd, cfg)
	if err != nil {
		return err
	}
	geocoder, err := rt.geocoder()
	if err != nil {
		return err
	}
	p, err := rt.pipeline(profile, geocoder, nil)
	if err != nil {
		return err
	}

	var publisher app.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, rt.metrics, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	cache := runcache.New[*pipeline.Result](cfg.RunCacheSize)
	svc := app.NewService(rt.source(), p, cache, publisher, rt.metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Initial load. Readiness stays false until it succeeds.
	go func() {
		if _, err := svc.Load(ctx); err != nil {
			logger.Error("initial load failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
