package extractor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franky-devOps/eventbridge-etl/internal/config"
	"github.com/franky-devOps/eventbridge-etl/internal/dedup"
	"github.com/franky-devOps/eventbridge-etl/internal/dispatch"
	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/extractor"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/messaging"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
)

// mockRunner records dispatched task specs.
type mockRunner struct {
	mu    sync.Mutex
	specs []*dispatch.TaskSpec
	err   error
}

func (m *mockRunner) RunTask(ctx context.Context, spec *dispatch.TaskSpec) (*dispatch.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.specs = append(m.specs, spec)
	return &dispatch.Receipt{TaskID: "task-1", Cluster: spec.Cluster}, nil
}

// mockPublisher captures published bus messages.
type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

// rememberingGuard reports duplicates within a test.
type rememberingGuard struct {
	seen map[string]bool
}

func (g *rememberingGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	if g.seen == nil {
		g.seen = make(map[string]bool)
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

func (g *rememberingGuard) Forget(ctx context.Context, key string) error {
	delete(g.seen, key)
	return nil
}

func (g *rememberingGuard) Close() error { return nil }

func validConfig() config.ExtractConfig {
	return config.ExtractConfig{
		ClusterName:    "etl-cluster",
		TaskDefinition: "extraction-task:3",
		Subnets:        `["subnet-1","subnet-2"]`,
		ContainerName:  "AppContainer",
	}
}

func newCoordinator(cfg config.ExtractConfig, runner *mockRunner, pub *mockPublisher, guard dedup.Guard) *extractor.Coordinator {
	log := logging.Default()
	emitter := stage.NewEmitter(pub, log.Logger)
	if guard == nil {
		guard = dedup.NoOpGuard{}
	}
	return extractor.NewCoordinator(cfg, runner, emitter, guard, log)
}

func record(bucket, arn, key string) extractor.Record {
	return extractor.Record{
		S3: extractor.S3Entity{
			Bucket: extractor.Bucket{Name: bucket, ARN: arn},
			Object: extractor.Object{Key: key},
		},
	}
}

func TestProcess_DispatchesOneJobPerRecord(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, nil)

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}}

	require.NoError(t, c.Process(context.Background(), n))

	require.Len(t, runner.specs, 1)
	spec := runner.specs[0]
	assert.Equal(t, "etl-cluster", spec.Cluster)
	assert.Equal(t, "extraction-task:3", spec.TaskDefinition)
	assert.Equal(t, 1, spec.Count)
	assert.Equal(t, "LATEST", spec.PlatformVersion)
	assert.Equal(t, []string{"subnet-1", "subnet-2"}, spec.Network.Subnets)
	assert.False(t, spec.Network.AssignPublicIP)
	assert.Equal(t, "landing", spec.Env(dispatch.EnvBucketName))
	assert.Equal(t, "file1.csv", spec.Env(dispatch.EnvObjectKey))

	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "etl.events.ecs-started", pub.subjects[0])

	env, err := events.Decode(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, events.DetailTypeTaskStarted, env.DetailType)
	assert.Equal(t, events.StatusSuccess, env.Status)

	payload, err := env.Payload()
	require.NoError(t, err)
	started := payload.(*events.TaskStarted)
	assert.Equal(t, "task-1", started.TaskID)
	assert.Equal(t, "landing", started.Bucket)
	assert.Equal(t, "file1.csv", started.ObjectKey)
}

func TestProcess_SkipsMalformedRecords(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, nil)

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
		record("landing", "", "file2.csv"), // missing ARN
		record("landing", "arn:aws:s3:::landing", "file3.csv"),
	}}

	require.NoError(t, c.Process(context.Background(), n))

	require.Len(t, runner.specs, 2)
	assert.Equal(t, "file1.csv", runner.specs[0].Env(dispatch.EnvObjectKey))
	assert.Equal(t, "file3.csv", runner.specs[1].Env(dispatch.EnvObjectKey))
	assert.Len(t, pub.subjects, 2)
}

func TestProcess_ConfigMissingMakesNoExternalCalls(t *testing.T) {
	cfg := validConfig()
	cfg.TaskDefinition = ""

	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(cfg, runner, pub, nil)

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}}

	err := c.Process(context.Background(), n)
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindConfigMissing))
	assert.Contains(t, err.Error(), "TASK_DEFINITION")

	assert.Empty(t, runner.specs, "no job may be dispatched on config failure")
	assert.Empty(t, pub.subjects, "no event may be published on config failure")
}

func TestProcess_InvalidSubnetList(t *testing.T) {
	cfg := validConfig()
	cfg.Subnets = "subnet-1,subnet-2" // not JSON

	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(cfg, runner, pub, nil)

	err := c.Process(context.Background(), &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}})
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindConfigMissing))
	assert.Empty(t, runner.specs)
}

func TestProcess_DispatchFailureAbortsBatch(t *testing.T) {
	runner := &mockRunner{err: errors.New("throttled")}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, nil)

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
		record("landing", "arn:aws:s3:::landing", "file2.csv"),
	}}

	err := c.Process(context.Background(), n)
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindJobDispatch))
	assert.True(t, stage.Retryable(err))
	assert.Empty(t, pub.subjects, "no acceptance event after a dispatch failure")
}

func TestProcess_PublishFailureSurfaces(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{err: errors.New("bus down")}
	c := newCoordinator(validConfig(), runner, pub, nil)

	err := c.Process(context.Background(), &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}})
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindPublish))
}

func TestProcess_OverridesRebuiltPerRecord(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, nil)

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "a.csv"),
		record("archive", "arn:aws:s3:::archive", "b.csv"),
	}}

	require.NoError(t, c.Process(context.Background(), n))
	require.Len(t, runner.specs, 2)

	assert.Equal(t, "landing", runner.specs[0].Env(dispatch.EnvBucketName))
	assert.Equal(t, "a.csv", runner.specs[0].Env(dispatch.EnvObjectKey))
	assert.Equal(t, "archive", runner.specs[1].Env(dispatch.EnvBucketName))
	assert.Equal(t, "b.csv", runner.specs[1].Env(dispatch.EnvObjectKey))
}

func TestProcess_DuplicateSuppressedByGuard(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, &rememberingGuard{})

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}}

	require.NoError(t, c.Process(context.Background(), n))
	require.NoError(t, c.Process(context.Background(), n))

	assert.Len(t, runner.specs, 1, "redelivery should not dispatch twice with the guard on")
}

func TestProcess_GuardReleasedOnDispatchFailure(t *testing.T) {
	runner := &mockRunner{err: errors.New("throttled")}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, &rememberingGuard{})

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}}

	err := c.Process(context.Background(), n)
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindJobDispatch))

	// Redelivery after the dispatcher recovers must not be suppressed
	// as a duplicate: the first attempt never ran the job.
	runner.err = nil
	require.NoError(t, c.Process(context.Background(), n))
	assert.Len(t, runner.specs, 1, "the redelivered record must dispatch exactly once")
}

func TestProcess_GuardReleasedOnPublishFailure(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{err: errors.New("bus down")}
	c := newCoordinator(validConfig(), runner, pub, &rememberingGuard{})

	n := &extractor.Notification{Records: []extractor.Record{
		record("landing", "arn:aws:s3:::landing", "file1.csv"),
	}}

	require.Error(t, c.Process(context.Background(), n))

	// The job already ran, so redelivery dispatches again: a duplicate
	// job is accepted, a never-announced task is not.
	pub.err = nil
	require.NoError(t, c.Process(context.Background(), n))
	assert.Len(t, runner.specs, 2)
	assert.Len(t, pub.subjects, 1)
}

func TestHandler_DropsUndecodableWrapper(t *testing.T) {
	runner := &mockRunner{}
	pub := &mockPublisher{}
	c := newCoordinator(validConfig(), runner, pub, nil)

	err := c.Handler()(context.Background(), &messaging.Message{Data: []byte("not json")})
	require.NoError(t, err, "an undecodable wrapper must not be redelivered forever")
	assert.Empty(t, runner.specs)
}
