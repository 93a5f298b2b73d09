// Package transformer converts one raw delimited row into a field
// mapping and republishes it for the loader.
//
// The parser is deliberately limited: both lines are split positionally
// on "," with no quoting or escaping, so a literal comma inside a field
// is unsupported. Rows whose value count differs from the header count
// are rejected rather than silently misaligned.
package transformer

import (
	"context"
	"strings"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

// Transform zips headers to values positionally. It is a pure
// function: identical inputs always yield an identical mapping.
func Transform(headers, data string) (events.FieldMapping, error) {
	headerList := strings.Split(headers, ",")
	valueList := strings.Split(data, ",")

	if len(headerList) != len(valueList) {
		return nil, stage.Errorf(stage.KindSchemaMismatch, "transform",
			"%d headers, %d values", len(headerList), len(valueList))
	}

	mapping := make(events.FieldMapping, len(headerList))
	for i, header := range headerList {
		mapping[header] = valueList[i]
	}
	return mapping, nil
}

// Worker is the transform stage: it consumes extraction events and
// emits transform events. It holds no state between invocations.
type Worker struct {
	emitter *stage.Emitter
	log     *logging.Logger
}

// NewWorker wires the worker's collaborators.
func NewWorker(emitter *stage.Emitter, log *logging.Logger) *Worker {
	return &Worker{emitter: emitter, log: log}
}

// Handle processes one s3RecordExtraction event.
func (w *Worker) Handle(ctx context.Context, env *events.Envelope) error {
	payload, err := env.Payload()
	if err != nil {
		return err
	}
	row, ok := payload.(*events.RecordExtracted)
	if !ok {
		return stage.Errorf(stage.KindSchemaMismatch, "transform",
			"unexpected payload for %s", env.DetailType)
	}

	mapping, err := Transform(row.Headers, row.Data)
	if err != nil {
		metrics.TransformErrors.Inc()
		w.log.ErrorContext(ctx, "row rejected", "error", err, "data", row.Data)
		return err
	}

	out, err := events.New(events.DetailTypeTransformed, events.StatusTransformed,
		&events.RecordTransformed{Data: mapping})
	if err != nil {
		return stage.NewError(stage.KindPublish, "build transform event", err)
	}
	return w.emitter.Emit(ctx, out)
}

// Handler adapts the worker to the bus subscription.
func (w *Worker) Handler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		env, err := events.Decode(msg.Data)
		if err != nil {
			w.log.ErrorContext(ctx, "dropping undecodable event", "error", err)
			return nil
		}
		return w.Handle(ctx, env)
	}
}
