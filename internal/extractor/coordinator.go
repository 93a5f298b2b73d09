// Package extractor implements the coordinator that turns landing
// notifications into dispatched bulk extraction jobs.
package extractor

import (
	"context"
	"encoding/json"

	"github.com/franky-devOps/eventbridge-etl/internal/config"
	"github.com/franky-devOps/eventbridge-etl/internal/dedup"
	"github.com/franky-devOps/eventbridge-etl/internal/dispatch"
	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/metrics"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

// Coordinator validates landing notifications, dispatches one bulk job
// per well-formed record, and reports each acceptance on the bus. It
// holds no state between invocations; redelivery of a notification
// means a duplicate dispatch unless the dedup guard is enabled.
type Coordinator struct {
	cfg     config.ExtractConfig
	runner  dispatch.Runner
	emitter *stage.Emitter
	guard   dedup.Guard
	log     *logging.Logger
}

// NewCoordinator wires the coordinator's collaborators. Pass
// dedup.NoOpGuard{} to accept duplicate dispatch on redelivery.
func NewCoordinator(cfg config.ExtractConfig, runner dispatch.Runner, emitter *stage.Emitter, guard dedup.Guard, log *logging.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		runner:  runner,
		emitter: emitter,
		guard:   guard,
		log:     log,
	}
}

// executionProfile is the validated, invocation-scoped job template.
type executionProfile struct {
	cluster        string
	taskDefinition string
	subnets        []string
	containerName  string
}

// resolveProfile checks every required identifier before any external
// call. A missing value fails the whole invocation with no side effects.
func (c *Coordinator) resolveProfile() (*executionProfile, error) {
	cluster, err := stage.Require("CLUSTER_NAME", c.cfg.ClusterName)
	if err != nil {
		return nil, err
	}
	taskDef, err := stage.Require("TASK_DEFINITION", c.cfg.TaskDefinition)
	if err != nil {
		return nil, err
	}
	rawSubnets, err := stage.Require("SUBNETS", c.cfg.Subnets)
	if err != nil {
		return nil, err
	}
	container, err := stage.Require("CONTAINER_NAME", c.cfg.ContainerName)
	if err != nil {
		return nil, err
	}

	var subnets []string
	if err := json.Unmarshal([]byte(rawSubnets), &subnets); err != nil {
		return nil, stage.Errorf(stage.KindConfigMissing, "resolve profile",
			"SUBNETS is not a JSON list: %v", err)
	}

	return &executionProfile{
		cluster:        cluster,
		taskDefinition: taskDef,
		subnets:        subnets,
		containerName:  container,
	}, nil
}

// Handler adapts the coordinator to the landing queue: one message is
// one wrapper. A returned error NAKs the message for redelivery.
func (c *Coordinator) Handler() messaging.MessageHandler {
	return func(ctx context.Context, msg *messaging.Message) error {
		n, err := DecodeNotification(msg.Data)
		if err != nil {
			// An undecodable wrapper can never succeed on redelivery.
			c.log.ErrorContext(ctx, "dropping undecodable notification", "error", err)
			return nil
		}
		if err := c.Process(ctx, n); err != nil {
			c.log.ErrorContext(ctx, "coordinator invocation failed", "error", err)
			return err
		}
		return nil
	}
}

// Process handles a batch of wrapper messages. Malformed records are
// skipped; a dispatch or publish failure aborts the remaining batch so
// the queue's redrive policy reprocesses it as a whole.
func (c *Coordinator) Process(ctx context.Context, batch ...*Notification) error {
	profile, err := c.resolveProfile()
	if err != nil {
		c.log.ErrorContext(ctx, "invocation aborted", "error", err)
		return err
	}

	for _, wrapper := range batch {
		for _, record := range wrapper.Records {
			bucket := record.S3.Bucket.Name
			arn := record.S3.Bucket.ARN
			key := record.S3.Object.Key

			if bucket == "" || arn == "" || key == "" {
				// Not a storage-shaped record; skip it without
				// failing the rest of the batch.
				c.log.WarnContext(ctx, "skipping malformed notification",
					"bucket", bucket, "arn", arn, "key", key,
					"reason", stage.KindMalformedNotification.String())
				metrics.NotificationsTotal.WithLabelValues("skipped").Inc()
				continue
			}

			guardKey := bucket + "/" + key
			claimed := true
			first, err := c.guard.FirstSeen(ctx, guardKey)
			if err != nil {
				// The guard fails open: losing dedup is recoverable,
				// losing a dispatch is not.
				c.log.WarnContext(ctx, "dedup guard unavailable, dispatching anyway",
					"bucket", bucket, "key", key, "error", err)
				first = true
				claimed = false
			}
			if !first {
				c.log.InfoContext(ctx, "suppressing duplicate notification",
					"bucket", bucket, "key", key)
				metrics.NotificationsTotal.WithLabelValues("duplicate").Inc()
				continue
			}

			spec := buildTaskSpec(profile, bucket, key)

			receipt, err := c.runner.RunTask(ctx, spec)
			if err != nil {
				// Do not best-effort past a dispatch error; the whole
				// batch is expected to be redelivered. Release the
				// guard claim so the redelivered record is dispatched
				// instead of suppressed as a duplicate.
				if claimed {
					c.release(ctx, guardKey)
				}
				return stage.NewError(stage.KindJobDispatch, "run task", err)
			}

			metrics.JobsDispatched.Inc()
			metrics.NotificationsTotal.WithLabelValues("dispatched").Inc()
			c.log.InfoContext(ctx, "extraction job accepted",
				"task_id", receipt.TaskID, "bucket", bucket, "key", key)

			env, err := events.New(events.DetailTypeTaskStarted, events.StatusSuccess, &events.TaskStarted{
				TaskID:    receipt.TaskID,
				Cluster:   receipt.Cluster,
				Bucket:    bucket,
				ObjectKey: key,
				StartedAt: receipt.AcceptedAt,
			})
			if err != nil {
				if claimed {
					c.release(ctx, guardKey)
				}
				return stage.NewError(stage.KindPublish, "build ecs-started event", err)
			}
			if err := c.emitter.Emit(ctx, env); err != nil {
				// The job is already running; releasing the claim
				// accepts a duplicate dispatch on redelivery rather
				// than never announcing the task.
				if claimed {
					c.release(ctx, guardKey)
				}
				return err
			}
		}
	}

	return nil
}

// release returns a guard claim after a failed dispatch or publish. A
// failed release is only logged; the stale claim expires with its TTL.
func (c *Coordinator) release(ctx context.Context, key string) {
	if err := c.guard.Forget(ctx, key); err != nil {
		c.log.WarnContext(ctx, "dedup claim not released", "key", key, "error", err)
	}
}

// buildTaskSpec assembles the dispatch request for one record. The
// overrides are rebuilt per record so nothing leaks between
// notifications in the same batch.
func buildTaskSpec(p *executionProfile, bucket, key string) *dispatch.TaskSpec {
	return &dispatch.TaskSpec{
		Cluster:         p.cluster,
		TaskDefinition:  p.taskDefinition,
		Count:           1,
		PlatformVersion: "LATEST",
		Network: dispatch.NetworkConfig{
			Subnets:        p.subnets,
			AssignPublicIP: false,
		},
		Overrides: []dispatch.ContainerOverride{
			{
				Name: p.containerName,
				Environment: []dispatch.EnvVar{
					{Name: dispatch.EnvBucketName, Value: bucket},
					{Name: dispatch.EnvObjectKey, Value: key},
				},
			},
		},
	}
}
