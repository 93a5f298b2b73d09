// Package extracttask implements the bulk extraction job the
// coordinator dispatches: stream the landed object out of storage and
// publish one extraction event per data row.
package extracttask

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/franky-devOps/eventbridge-etl/internal/dispatch"
	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
	"github.com/franky-devOps/eventbridge-etl/internal/objstore"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

// maxRowSize bounds a single delimited row.
const maxRowSize = 1024 * 1024

// Task runs one bulk extraction job. Unlike the other stages it may
// run for as long as the object is large; the coordinator has already
// returned by the time it starts.
type Task struct {
	reader  objstore.Reader
	emitter *stage.Emitter
	log     *logging.Logger
}

// NewTask wires the task's collaborators.
func NewTask(reader objstore.Reader, emitter *stage.Emitter, log *logging.Logger) *Task {
	return &Task{reader: reader, emitter: emitter, log: log}
}

// Run fetches the object named by the spec's container overrides and
// publishes an s3RecordExtraction event for every data row. The first
// line is the header row, repeated verbatim in each event so the
// transformer needs no other context.
func (t *Task) Run(ctx context.Context, spec *dispatch.TaskSpec) error {
	bucket, err := stage.Require(dispatch.EnvBucketName, spec.Env(dispatch.EnvBucketName))
	if err != nil {
		return err
	}
	key, err := stage.Require(dispatch.EnvObjectKey, spec.Env(dispatch.EnvObjectKey))
	if err != nil {
		return err
	}

	obj, err := t.reader.Get(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("fetch object %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	scanner := bufio.NewScanner(obj)
	scanner.Buffer(make([]byte, 64*1024), maxRowSize)

	var headers string
	rows := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if headers == "" {
			headers = line
			continue
		}

		env, err := events.New(events.DetailTypeExtracted, events.StatusExtracted, &events.RecordExtracted{
			Headers: headers,
			Data:    line,
		})
		if err != nil {
			return stage.NewError(stage.KindPublish, "build extraction event", err)
		}
		if err := t.emitter.Emit(ctx, env); err != nil {
			return err
		}
		metrics.RowsExtracted.Inc()
		rows++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}

	t.log.InfoContext(ctx, "extraction complete", "bucket", bucket, "key", key, "rows", rows)
	return nil
}

// Handler adapts the task to the jobs work queue: one message is one
// task spec. A returned error NAKs the job for redelivery.
func (t *Task) Handler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		var spec dispatch.TaskSpec
		if err := json.Unmarshal(msg.Data, &spec); err != nil {
			t.log.ErrorContext(ctx, "dropping undecodable task spec", "error", err)
			return nil
		}
		if err := t.Run(ctx, &spec); err != nil {
			t.log.ErrorContext(ctx, "extraction job failed", "error", err)
			return err
		}
		return nil
	}
}
