package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/loader"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
	"github.com/franky-devOps/eventbridge-etl/internal/store"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run the loader",
	Long: `Consumes transformed-record events from the durable transformed
queue and upserts each record into the address table, then publishes a
loaded event echoing the written record.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup("load")
	if err != nil {
		return err
	}

	table, err := stage.Require("TABLE_NAME", cfg.Load.TableName)
	if err != nil {
		return err
	}

	connString := cfg.Postgres.ConnString()
	if err := runMigrations(cfg.Load.MigrationsPath, connString, logger.Logger); err != nil {
		return err
	}

	st, err := store.NewPostgresStore(cmd.Context(), connString, table)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer st.Close()

	js, err := connectStream(cfg)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer js.Close()

	ctx := cmd.Context()
	provisionCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(provisionCtx, etlnats.TransformedStream); err != nil {
		return err
	}
	if _, err := js.CreateOrUpdateConsumer(provisionCtx, messaging.StreamTransformed,
		etlnats.DefaultConsumerConfig(messaging.ConsumerTransformed,
			messaging.EventSubject(events.DetailTypeTransformed))); err != nil {
		return err
	}

	emitter := stage.NewEmitter(js, logger.Logger)
	ld := loader.NewLoader(st, emitter, logger)

	governor := stage.NewGovernor(cfg.Pipeline.MaxConcurrency)
	stop, err := js.ConsumeMessages(ctx, messaging.StreamTransformed, messaging.ConsumerTransformed,
		governor.Wrap(ld.Handler()))
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	defer stop()

	stopMetrics := serveMetrics(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	logger.Info("loader running",
		slog.String("stream", messaging.StreamTransformed),
		slog.String("table", table),
		slog.Int("max_concurrency", cfg.Pipeline.MaxConcurrency),
	)
	awaitSignal()

	logger.Info("shutting down")
	return js.Drain()
}

func runMigrations(path, connString string, log *slog.Logger) error {
	log.Info("running migrations", slog.String("path", path))
	m, err := migrate.New("file://"+path, connString)
	if err != nil {
		return fmt.Errorf("initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("migrations complete")
	return nil
}
