package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/extracttask"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
	"github.com/franky-devOps/eventbridge-etl/internal/objstore"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

var taskRunnerCmd = &cobra.Command{
	Use:   "task-runner",
	Short: "Run the bulk extraction worker",
	Long: `Consumes dispatched extraction jobs from the durable jobs queue,
streams the referenced object from the landing bucket, and publishes
one extraction event per data row.`,
	RunE: runTaskRunner,
}

func init() {
	rootCmd.AddCommand(taskRunnerCmd)
}

func runTaskRunner(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup("task-runner")
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

	if _, err := js.CreateOrUpdateStream(provisionCtx, etlnats.JobsStream); err != nil {
		return err
	}
	if _, err := js.CreateOrUpdateConsumer(provisionCtx, messaging.StreamJobs,
		etlnats.DefaultConsumerConfig(messaging.ConsumerJobs, messaging.SubjectJobsExtract)); err != nil {
		return err
	}

	reader, err := objstore.New(objstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Insecure:  cfg.ObjectStore.Insecure,
	})
	if err != nil {
		return fmt.Errorf("connect object store: %w", err)
	}

	emitter := stage.NewEmitter(js, logger.Logger)
	task := extracttask.NewTask(reader, emitter, logger)

	governor := stage.NewGovernor(cfg.Pipeline.MaxConcurrency)
	stop, err := js.ConsumeMessages(ctx, messaging.StreamJobs, messaging.ConsumerJobs,
		governor.Wrap(task.Handler()))
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	defer stop()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	logger.Info("task-runner running",
		slog.String("stream", messaging.StreamJobs),
		slog.String("object_store", cfg.ObjectStore.Endpoint),
		slog.Int("max_concurrency", cfg.Pipeline.MaxConcurrency),
	)
	awaitSignal()

	logger.Info("shutting down")
	return js.Drain()
}
