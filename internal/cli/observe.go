package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/observer"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Run the pipeline observer",
	Long: `Subscribes to every lifecycle event and records it. The observer
is read-only: it never publishes, and a recording failure never
disturbs delivery to the other stages.`,
	RunE: runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
}

func runObserve(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup("observe")
	if err != nil {
		return err
	}

	bus, err := connectBus(cfg)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer bus.Close()

	obs := observer.New(observer.LogRecorder{Log: logger}, logger)

	// Plain subscription, no queue group and no throttle: every
	// observer instance sees every event.
	sub, err := bus.Subscribe(messaging.SubjectEventsAll, obs.Handler())
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", messaging.SubjectEventsAll, err)
	}
	defer sub.Unsubscribe()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	logger.Info("observer running", slog.String("subject", messaging.SubjectEventsAll))
	awaitSignal()

	logger.Info("shutting down")
	return bus.Drain()
}
