// Package stage holds the contract every pipeline stage follows:
// fail-fast configuration checks, typed failure kinds, event emission
// that never swallows a publish error, and the shared fan-out ceiling.
package stage

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
)

// Require returns a ConfigMissing error when value is empty. Stages
// call it for every identifier they need before making any external
// call, so a misconfigured stage fails with zero side effects.
func Require(name, value string) (string, error) {
	if value == "" {
		return "", Errorf(KindConfigMissing, "require", "%s is not defined", name)
	}
	return value, nil
}

// Emitter publishes lifecycle events on behalf of a stage.
type Emitter struct {
	pub messaging.Publisher
	log *slog.Logger
}

// NewEmitter creates an Emitter over the given bus publisher.
func NewEmitter(pub messaging.Publisher, log *slog.Logger) *Emitter {
	return &Emitter{pub: pub, log: log}
}

// Emit publishes the envelope to its detail type's subject. A publish
// failure is wrapped as KindPublish and returned to the invoker; a
// dropped lifecycle event would silently break downstream stages and
// the audit trail, so it is never absorbed here.
func (e *Emitter) Emit(ctx context.Context, env *events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return NewError(KindPublish, "emit "+env.DetailType, err)
	}

	subject := messaging.EventSubject(env.DetailType)
	if err := e.pub.Publish(ctx, subject, data); err != nil {
		e.log.ErrorContext(ctx, "event publish failed",
			"subject", subject, "detail_type", env.DetailType, "error", err)
		return NewError(KindPublish, "emit "+env.DetailType, err)
	}

	metrics.EventsPublished.WithLabelValues(env.DetailType).Inc()
	e.log.DebugContext(ctx, "event published",
		"subject", subject, "detail_type", env.DetailType, "status", env.Status)
	return nil
}
