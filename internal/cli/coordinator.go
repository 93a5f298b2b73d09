package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/config"
	"github.com/franky-devOps/eventbridge-etl/internal/dedup"
	"github.com/franky-devOps/eventbridge-etl/internal/dispatch"
	"github.com/franky-devOps/eventbridge-etl/internal/extractor"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the extractor coordinator",
	Long: `Consumes object-created notifications from the durable landing
queue, dispatches one bulk extraction job per record, and publishes a
task-started event for each accepted job.`,
	RunE: runCoordinator,
}

func init() {
	rootCmd.AddCommand(coordinatorCmd)
}

func runCoordinator(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup("coordinator")
	if err != nil {
		return err
	}

	js, err := connectStream(cfg)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer js.Close()

	ctx := cmd.Context()
	provisionCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// The landing queue feeding this stage and the jobs queue it
	// dispatches into.
	if _, err := js.CreateOrUpdateStream(provisionCtx, etlnats.LandingStream); err != nil {
		return err
	}
	if _, err := js.CreateOrUpdateConsumer(provisionCtx, messaging.StreamLanding,
		etlnats.DefaultConsumerConfig(messaging.ConsumerLanding, messaging.SubjectLandingNotifications)); err != nil {
		return err
	}
	if _, err := js.CreateOrUpdateStream(provisionCtx, etlnats.JobsStream); err != nil {
		return err
	}

	guard := newDedupGuard(cfg, logger)
	defer guard.Close()

	runner := dispatch.NewJetStreamRunner(js)
	emitter := stage.NewEmitter(js, logger.Logger)
	coordinator := extractor.NewCoordinator(cfg.Extract, runner, emitter, guard, logger)

	governor := stage.NewGovernor(cfg.Pipeline.MaxConcurrency)
	stop, err := js.ConsumeMessages(ctx, messaging.StreamLanding, messaging.ConsumerLanding,
		governor.Wrap(coordinator.Handler()))
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	defer stop()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	logger.Info("coordinator running",
		slog.String("stream", messaging.StreamLanding),
		slog.Int("max_concurrency", cfg.Pipeline.MaxConcurrency),
	)
	awaitSignal()

	logger.Info("shutting down")
	return js.Drain()
}

// newDedupGuard builds the optional Redis first-seen guard. Guard
// failures never block the pipeline, so a failed connection degrades
// to pass-through.
func newDedupGuard(cfg *config.Config, logger *logging.Logger) dedup.Guard {
	if !cfg.Redis.DedupEnabled {
		return dedup.NoOpGuard{}
	}
	guard, err := dedup.NewRedisGuard(cfg.Redis.Addr, cfg.Redis.DedupTTL)
	if err != nil {
		logger.Warn("dedup guard unavailable, continuing without it",
			slog.String("addr", cfg.Redis.Addr),
			slog.Any("error", err),
		)
		return dedup.NoOpGuard{}
	}
	logger.Info("dedup guard enabled",
		slog.String("addr", cfg.Redis.Addr),
		slog.Duration("ttl", cfg.Redis.DedupTTL),
	)
	return guard
}
