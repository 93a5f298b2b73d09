// Package cli wires the pipeline stages into the etl binary. Each
// stage runs as its own subcommand so deployments scale them
// independently.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/config"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "Event-driven ETL pipeline",
	Long: `etl runs the stages of an event-driven ETL pipeline.

Object-created notifications land in a durable queue, a coordinator
dispatches bulk extraction jobs, and extracted records flow through
transformation into the address store. Every stage is triggered by
events on the bus and each runs as its own subcommand.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
}

// setup loads configuration and installs a stage-tagged default logger.
func setup(stage string) (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).ForStage(stage)
	logging.SetDefault(logger)

	if cfgFile != "" {
		logger.Info("loaded configuration", slog.String("config_path", cfgFile))
	}
	return cfg, logger, nil
}

// connectBus opens the core NATS connection shared by the lightweight
// stages.
func connectBus(cfg *config.Config) (*etlnats.Client, error) {
	return etlnats.NewClient(natsConfig(cfg))
}

// connectStream opens a JetStream-enabled connection for stages backed
// by durable queues.
func connectStream(cfg *config.Config) (*etlnats.JetStreamClient, error) {
	return etlnats.NewJetStreamClient(natsConfig(cfg))
}

func natsConfig(cfg *config.Config) etlnats.Config {
	return etlnats.Config{
		URL:           cfg.NATS.URL,
		Name:          cfg.NATS.Name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       cfg.NATS.Timeout,
	}
}

// serveMetrics exposes the Prometheus endpoint in the background and
// returns a shutdown function.
func serveMetrics(addr string, log *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// awaitSignal blocks until the process receives SIGINT or SIGTERM.
func awaitSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
