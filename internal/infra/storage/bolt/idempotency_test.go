package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/app/middleware"
)

func openTestStore(t *testing.T) (*IdempotencyStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idem.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestIdempotencyStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	defer s.Close()

	_, found, err := s.Get(ctx, "booking.request:k1")
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "booking.request:k1", Payload: []byte(`{"id":"b1"}`), OccurredAt: at}))

	rec, found, err := s.Get(ctx, "booking.request:k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"b1"}`, string(rec.Payload))
	assert.True(t, at.Equal(rec.OccurredAt))
}

func TestIdempotencyStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)
	require.NoError(t, s.Save(ctx, middleware.IdempotencyRecord{Key: "k", Payload: []byte(`1`), OccurredAt: time.Now().UTC()}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	_, found, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIdempotencyStoreHonorsCancelledContext(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
