package transformer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franky-devOps/eventbridge-etl/internal/events"
	"github.com/franky-devOps/eventbridge-etl/internal/logging"
	"github.com/franky-devOps/eventbridge-etl/internal/stage"
	"github.com/franky-devOps/eventbridge-etl/internal/transformer"
)

func TestTransform_ZipsHeadersToValues(t *testing.T) {
	mapping, err := transformer.Transform(
		"id,house_number,street,town,zip",
		"1,22,MainSt,Springfield,90210",
	)
	require.NoError(t, err)

	assert.Equal(t, events.FieldMapping{
		"id":           "1",
		"house_number": "22",
		"street":       "MainSt",
		"town":         "Springfield",
		"zip":          "90210",
	}, mapping)
}

func TestTransform_IsPure(t *testing.T) {
	first, err := transformer.Transform("a,b", "1,2")
	require.NoError(t, err)
	second, err := transformer.Transform("a,b", "1,2")
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must yield identical mappings")
}

func TestTransform_CountMismatchFailsLoudly(t *testing.T) {
	_, err := transformer.Transform("a,b,c", "1,2")
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindSchemaMismatch))
	assert.False(t, stage.Retryable(err), "a malformed row cannot succeed on redelivery")

	_, err = transformer.Transform("a", "1,2")
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindSchemaMismatch))
}

func TestTransform_NoQuotingSupport(t *testing.T) {
	// A quoted comma still splits: the limited parser has no escaping.
	mapping, err := transformer.Transform(`a,b,c`, `1,"x,y",3`)
	require.Error(t, err, "the embedded comma shifts the value count")
	assert.Nil(t, mapping)
}

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

func newWorker(pub *capturePublisher) *transformer.Worker {
	log := logging.Default()
	return transformer.NewWorker(stage.NewEmitter(pub, log.Logger), log)
}

func TestWorker_EmitsTransformEvent(t *testing.T) {
	pub := &capturePublisher{}
	w := newWorker(pub)

	in, err := events.New(events.DetailTypeExtracted, events.StatusExtracted, &events.RecordExtracted{
		Headers: "id,house_number,street,town,zip",
		Data:    "1,22,MainSt,Springfield,90210",
	})
	require.NoError(t, err)

	require.NoError(t, w.Handle(context.Background(), in))
	require.Len(t, pub.payloads, 1)

	out, err := events.Decode(pub.payloads[0])
	require.NoError(t, err)
	assert.Equal(t, events.DetailTypeTransformed, out.DetailType)
	assert.Equal(t, events.StatusTransformed, out.Status)

	payload, err := out.Payload()
	require.NoError(t, err)
	transformed := payload.(*events.RecordTransformed)
	assert.Equal(t, "Springfield", transformed.Data["town"])
}

func TestWorker_RejectsMismatchedRow(t *testing.T) {
	pub := &capturePublisher{}
	w := newWorker(pub)

	in, err := events.New(events.DetailTypeExtracted, events.StatusExtracted, &events.RecordExtracted{
		Headers: "id,zip",
		Data:    "1",
	})
	require.NoError(t, err)

	err = w.Handle(context.Background(), in)
	require.Error(t, err)
	assert.True(t, stage.IsKind(err, stage.KindSchemaMismatch))
	assert.Empty(t, pub.payloads, "no event for a rejected row")
}
