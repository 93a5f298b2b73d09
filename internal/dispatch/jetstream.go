package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	etlnats "github.com/franky-devOps/eventbridge-etl/internal/messaging/nats"
)

// JetStreamRunner dispatches jobs by appending the task spec to the
// durable ETL_JOBS work queue, where task-runner workers pick them up.
// The stream acknowledgment is the acceptance signal.
type JetStreamRunner struct {
	js *etlnats.JetStreamClient
}

// NewJetStreamRunner creates a runner over the given JetStream client.
func NewJetStreamRunner(js *etlnats.JetStreamClient) *JetStreamRunner {
	return &JetStreamRunner{js: js}
}

var _ Runner = (*JetStreamRunner)(nil)

// RunTask implements Runner.
func (r *JetStreamRunner) RunTask(ctx context.Context, spec *TaskSpec) (*Receipt, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal task spec: %w", err)
	}

	if _, err := r.js.PublishSync(ctx, messaging.SubjectJobsExtract, data); err != nil {
		return nil, fmt.Errorf("enqueue task: %w", err)
	}

	return &Receipt{
		TaskID:     uuid.New().String(),
		Cluster:    spec.Cluster,
		AcceptedAt: time.Now().UTC(),
	}, nil
}
