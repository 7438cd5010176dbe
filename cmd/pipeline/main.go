// Command pipeline runs the civic risk processing stages over the configured
// data snapshots. With no subcommand arguments it runs every stage in
// dependency order; each stage is also exposed as its own subcommand so a
// single stage can be rerun after fixing its inputs.
//
// Usage:
//
//	pipeline run                # all stages
//	pipeline normalize          # one stage
//	AS_OF_DATE=2025-06-01 pipeline run
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/civic-risk-etl/internal/adapter/http"
	"github.com/couchcryptid/civic-risk-etl/internal/config"
	"github.com/couchcryptid/civic-risk-etl/internal/observability"
	"github.com/couchcryptid/civic-risk-etl/internal/pipeline"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Process municipal housing snapshots into risk tables",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run every stage in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), "")
		},
	})

	stages := []struct {
		name  string
		short string
	}{
		{pipeline.StageNormalize, "Parse raw snapshots into cleaned tables"},
		{pipeline.StageRegistry, "Resolve cleaned records into the property registry"},
		{pipeline.StageRisk, "Score properties and landlords from linked events"},
		{pipeline.StageSpatial, "Aggregate property risk by council district"},
		{pipeline.StageTrend, "Aggregate student housing trends by year and district"},
	}
	for _, s := range stages {
		stage := s.name
		root.AddCommand(&cobra.Command{
			Use:   stage,
			Short: s.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd.Context(), stage)
			},
		})
	}

	return root
}

func execute(parent context.Context, stage string) error {
	// Best-effort: a missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	p := pipeline.New(cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	var runErr error
	if stage == "" {
		runErr = p.RunAll(ctx)
	} else {
		runErr = p.RunStage(ctx, stage)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("pipeline failed", "error", runErr)
		return runErr
	}
	logger.Info("pipeline finished")
	return nil
}
