// Package loader persists transformed field mappings and reports each
// write on the bus.
package loader

import (
	"context"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
	"github.com/franky-devOps/eventbridge-etl/internal/store"
)

// Field names the loader expects in an inbound mapping. They come from
// the extraction schema upstream and are matched exactly,
// case-sensitively.
const (
	FieldID       = "ID"
	FieldHouseNum = "HouseNum"
	FieldStreet   = "Street"
	FieldTown     = "Town"
	FieldZip      = "Zip"
)

// Loader writes one record per transform event, keyed by the mapping's
// ID field. Upsert semantics make redelivery safe: re-running the same
// event re-writes the same row.
type Loader struct {
	store   store.Store
	emitter *stage.Emitter
	log     *logging.Logger
}

// NewLoader wires the loader's collaborators.
func NewLoader(st store.Store, emitter *stage.Emitter, log *logging.Logger) *Loader {
	return &Loader{store: st, emitter: emitter, log: log}
}

// Handle processes one transform event: persist, then echo the write
// as a loaded event. Either both happen or the invocation fails and
// the redrive policy reprocesses it.
func (l *Loader) Handle(ctx context.Context, env *events.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}
	transformed, ok := payload.(*events.RecordTransformed)
	if !ok {
		return stage.Errorf(stage.KindSchemaMismatch, "load",
			"unexpected payload for %s", env.DetailType)
	}

	mapping := transformed.Data
	id, idPresent := mapping[FieldID]
	if !idPresent || id == "" {
		return stage.Errorf(stage.KindSchemaMismatch, "load",
			"mapping has no %s field", FieldID)
	}

	rec := store.Record{
		ID:          id,
		HouseNumber: mapping[FieldHouseNum],
		Street:      mapping[FieldStreet],
		Town:        mapping[FieldTown],
		Zip:         mapping[FieldZip],
	}

	if err := l.store.Upsert(ctx, rec); err != nil {
		l.log.ErrorContext(ctx, "store write failed", "id", rec.ID, "error", err)
		return stage.NewError(stage.KindPersist, "upsert", err)
	}

	metrics.RecordsLoaded.Inc()
	l.log.InfoContext(ctx, "record loaded", "id", rec.ID)

	out, err := events.New(events.DetailTypeLoaded, events.StatusSuccess, &events.RecordLoaded{
		ID:          rec.ID,
		HouseNumber: rec.HouseNumber,
		Street:      rec.Street,
		Town:        rec.Town,
		Zip:         rec.Zip,
	})
	if err != nil {
		return stage.NewError(stage.KindPublish, "build loaded event", err)
	}
	return l.emitter.Emit(ctx, out)
}

// Handler adapts the loader to the bus subscription.
func (l *Loader) Handler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		env, err := events.Decode(msg.Data)
		if err != nil {
			l.log.ErrorContext(ctx, "dropping undecodable event", "error", err)
			return nil
		}
		return l.Handle(ctx, env)
	}
}
