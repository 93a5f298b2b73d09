package loader_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/loader"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
	"github.com/franky-devOps/eventbridge-etl/internal/store"
)

type capturePublisher struct {
	payloads [][]byte
	err      error
}

func (c *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) Upsert(ctx context.Context, rec store.Record) error {
	return errors.New("table unavailable")
}

func (failingStore) Get(ctx context.Context, id string) (store.Record, bool, error) {
	return store.Record{}, false, nil
}

func (failingStore) Close() error { return nil }

func transformEvent(t *testing.T, mapping events.FieldMapping) *events.Envelope {
	t.Helper()
	env, err := events.New(events.DetailTypeTransformed, events.StatusTransformed,
		&events.RecordTransformed{Data: mapping})
	require.NoError(t, err)
	return env
}

func addressMapping() events.FieldMapping {
	return events.FieldMapping{
		"ID":       "1",
		"HouseNum": "22",
		"Street":   "MainSt",
		"Town":     "Springfield",
		"Zip":      "90210",
	}
}

func newLoader(st store.Store, pub *capturePublisher) *loader.Loader {
	log := logging.Default()
	return loader.NewLoader(st, stage.NewEmitter(pub, log.Logger), log)
}

func TestHandle_PersistsAndEchoes(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &capturePublisher{}
	l := newLoader(st, pub)

	require.NoError(t, l.Handle(context.Background(), transformEvent(t, addressMapping())))

	rec, ok, err := st.Get(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.Record{
		ID: "1", HouseNumber: "22", Street: "MainSt", Town: "Springfield", Zip: "90210",
	}, rec)

	require.Len(t, pub.payloads, 1)
	out, err := events.Decode(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, events.DetailTypeLoaded, out.DetailType)
	assert.Equal(t, events.StatusSuccess, out.Status)

	payload, err := out.Payload()
	require.NoError(t, err)
	echoed := payload.(*events.RecordLoaded)
	assert.Equal(t, "1", echoed.ID)
	assert.Equal(t, "Springfield", echoed.Town)
}

func TestHandle_IdempotentByID(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &capturePublisher{}
	l := newLoader(st, pub)
	ctx := context.Background()

	require.NoError(t, l.Handle(ctx, transformEvent(t, addressMapping())))

	second := addressMapping()
	second["Town"] = "Shelbyville"
	require.NoError(t, l.Handle(ctx, transformEvent(t, second)))

	assert.Equal(t, 1, st.Len(), "same ID must leave exactly one record")
	rec, _, err := st.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Shelbyville", rec.Town, "second write's values win")
}

func TestHandle_MissingIDFails(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &capturePublisher{}
	l := newLoader(st, pub)

	mapping := addressMapping()
	delete(mapping, "ID")

	err := l.Handle(context.Background(), transformEvent(t, mapping))
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindSchemaMismatch))
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, pub.payloads)
}

func TestHandle_FieldNamesAreCaseSensitive(t *testing.T) {
	st := store.NewMemoryStore()
	pub := &capturePublisher{}
	l := newLoader(st, pub)

	err := l.Handle(context.Background(), transformEvent(t, events.FieldMapping{
		"id": "1", "housenum": "22",
	}))
	require.Error(t, err, "lowercase keys must not match")
	assert.True(t, stage.IsKind(err, stage.KindSchemaMismatch))
}

func TestHandle_PersistFailureEmitsNothing(t *testing.T) {
	pub := &capturePublisher{}
	l := newLoader(failingStore{}, pub)

	err := l.Handle(context.Background(), transformEvent(t, addressMapping()))
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindPersist))
	assert.True(t, stage.Retryable(err))
	assert.Empty(t, pub.payloads, "no loaded event without a successful write")
}
