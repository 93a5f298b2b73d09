// Package observer records every lifecycle event for audit and
// visibility. It subscribes to the whole event namespace, emits
// nothing, and never lets a recording failure travel back into the
// pipeline.
package observer

import (
	"context"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
)

// Recorder persists one observed envelope.
type Recorder interface {
	Record(ctx context.Context, env *events.Envelope) error
}

// LogRecorder writes observed events to the structured log.
type LogRecorder struct {
	Log *logging.Logger
}

func (r LogRecorder) Record(ctx context.Context, env *events.Envelope) error {
	r.Log.InfoContext(ctx, "event observed",
		"detail_type", env.DetailType,
		"status", env.Status,
		"time", env.Time,
		"detail", string(env.Detail))
	return nil
}

// Observer is the audit stage.
type Observer struct {
	recorder Recorder
	log      *logging.Logger
}

// New creates an Observer over the given recorder.
func New(recorder Recorder, log *logging.Logger) *Observer {
	return &Observer{recorder: recorder, log: log}
}

// Handler returns the broad-subscription handler. It always returns
// nil: the audit trail is best-effort by contract, and a recording
// failure must never surface as a pipeline failure.
func (o *Observer) Handler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		env, err := events.Decode(msg.Data)
		if err != nil {
			o.log.WarnContext(ctx, "unreadable event on audit subscription", "error", err)
			return nil
		}

		metrics.EventsObserved.WithLabelValues(env.DetailType).Inc()

		if err := o.record(ctx, env); err != nil {
			o.log.WarnContext(ctx, "audit record failed", "detail_type", env.DetailType, "error", err)
		}
		return nil
	}
}

// record isolates recorder panics as well as errors; this boundary is
// the only place in the pipeline where failures are swallowed.
func (o *Observer) record(ctx context.Context, env *events.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.WarnContext(ctx, "audit recorder panicked", "panic", r)
			err = nil
		}
	}()
	return o.recorder.Record(ctx, env)
}
