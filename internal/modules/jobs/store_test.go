package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcfalli/TickStockAppV2-sub021/internal/broker"
)

func newTestStore(t *testing.T) (*StatusStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := broker.New(broker.Config{Addr: mr.Addr(), OpTimeout: time.Second}, zerolog.Nop())
	t.Cleanup(func() { _ = client.Close() })

	store := NewStatusStore(client, time.Hour, zerolog.Nop())
	return store, mr
}

func TestStatusStore_WriteAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	written := JobStatus{
		Status:    StatusSubmitted,
		Progress:  0,
		Message:   "Loading historical OHLCV data",
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.WriteInitial(ctx, "11111111-1111-1111-1111-111111111111", written))

	// Key lives under the shared job:status: prefix
	assert.True(t, mr.Exists("job:status:11111111-1111-1111-1111-111111111111"))

	got, err := store.Get(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, written.Status, got.Status)
	assert.Equal(t, written.Progress, got.Progress)
	assert.Equal(t, written.Message, got.Message)
	assert.True(t, written.UpdatedAt.Equal(got.UpdatedAt))
}

func TestStatusStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "22222222-2222-2222-2222-222222222222")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusStore_RecordsExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteInitial(ctx, "job-a", JobStatus{Status: StatusSubmitted}))

	_, err := store.Get(ctx, "job-a")
	require.NoError(t, err)

	// Past the TTL the record is gone regardless of state
	mr.FastForward(2 * time.Hour)

	_, err = store.Get(ctx, "job-a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteInitial(ctx, "job-b", JobStatus{Status: StatusSubmitted}))
	require.NoError(t, store.Delete(ctx, "job-b"))

	_, err := store.Get(ctx, "job-b")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent record is not an error
	require.NoError(t, store.Delete(ctx, "job-b"))
}

func TestStatusStore_BrokerDown(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	err := store.WriteInitial(ctx, "job-c", JobStatus{Status: StatusSubmitted})
	assert.ErrorIs(t, err, ErrBrokerUnavailable)

	_, err = store.Get(ctx, "job-c")
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
}
