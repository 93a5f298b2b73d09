package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
	"github.com/franky-devOps/eventbridge-etl/internal/transformer"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Run the transformer",
	Long: `Consumes extraction events from the durable extracted queue, maps
each raw row onto the extraction headers, and publishes the transformed
record.`,
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup("transform")
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

	if _, err := js.CreateOrUpdateStream(provisionCtx, etlnats.ExtractedStream); err != nil {
		return err
	}
	if _, err := js.CreateOrUpdateConsumer(provisionCtx, messaging.StreamExtracted,
		etlnats.DefaultConsumerConfig(messaging.ConsumerExtracted,
			messaging.EventSubject(events.DetailTypeExtracted))); err != nil {
		return err
	}

	emitter := stage.NewEmitter(js, logger.Logger)
	worker := transformer.NewWorker(emitter, logger)

	governor := stage.NewGovernor(cfg.Pipeline.MaxConcurrency)
	stop, err := js.ConsumeMessages(ctx, messaging.StreamExtracted, messaging.ConsumerExtracted,
		governor.Wrap(worker.Handler()))
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	defer stop()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	logger.Info("transformer running",
		slog.String("stream", messaging.StreamExtracted),
		slog.Int("max_concurrency", cfg.Pipeline.MaxConcurrency),
	)
	awaitSignal()

	logger.Info("shutting down")
	return js.Drain()
}
