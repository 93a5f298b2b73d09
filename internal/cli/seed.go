package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/franky-devOps/eventbridge-etl/internal/extractor"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
	"github.com/franky-devOps/eventbridge-etl/internal/objstore"
	"github.com/franky-devOps/eventbridge-etl/internal/seeder"
)

var (
	seedBucket string
	seedKey    string
	seedCount  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate sample data and trigger the pipeline",
	Long: `Uploads a generated CSV of fake addresses to the landing bucket
and publishes the matching object-created notification, exercising the
pipeline end to end.

Examples:
  # Default 100 rows
  etl seed --bucket landing

  # A larger file under a specific key
  etl seed --bucket landing --key uploads/big.csv --count 10000`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedBucket, "bucket", "landing", "landing bucket name")
	seedCmd.Flags().StringVar(&seedKey, "key", "seed/addresses.csv", "object key for the generated file")
	seedCmd.Flags().IntVarP(&seedCount, "count", "c", 100, "number of rows to generate")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup("seed")
	if err != nil {
		return err
	}

	writer, err := objstore.New(objstore.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Insecure:  cfg.ObjectStore.Insecure,
	})
	if err != nil {
		return fmt.Errorf("connect object store: %w", err)
	}

	js, err := connectStream(cfg)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	defer js.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// The landing stream must exist before the announcement, or the
	// notification would be dropped instead of queued.
	if _, err := js.CreateOrUpdateStream(ctx, etlnats.LandingStream); err != nil {
		return err
	}

	s := seeder.New(writer, &landingAnnouncer{js: js})
	if err := s.Seed(ctx, seedBucket, seedKey, seedCount); err != nil {
		return err
	}

	logger.Info("seeded landing bucket")
	fmt.Printf("Uploaded %d rows to %s/%s and published the notification\n", seedCount, seedBucket, seedKey)
	return nil
}

// landingAnnouncer appends notifications to the durable landing queue.
type landingAnnouncer struct {
	js *etlnats.JetStreamClient
}

func (a *landingAnnouncer) PublishNotification(ctx context.Context, n *extractor.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	_, err = a.js.PublishSync(ctx, messaging.SubjectLandingNotifications, data)
	return err
}
