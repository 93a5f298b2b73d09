package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, Record{ID: "1", Town: "Springfield", Zip: "90210"}))
	require.NoError(t, s.Upsert(ctx, Record{ID: "1", Town: "Shelbyville", Zip: "90211"}))

	assert.Equal(t, 1, s.Len(), "same ID must not create a second record")

	rec, ok, err := s.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Shelbyville", rec.Town, "second write wins")
	assert.Equal(t, "90211", rec.Zip)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
