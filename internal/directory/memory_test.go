package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRegistrationFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	u, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, now))

	u, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.False(t, u.Registered())
	require.NotNil(t, u.PendingToken)
	assert.Equal(t, int64(1234567), *u.PendingToken)

	id, err := store.SetTimezoneByToken(ctx, 1234567, "Europe/Berlin", now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	u, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.Registered())
	assert.Equal(t, "Europe/Berlin", u.Timezone)
	assert.Nil(t, u.PendingToken, "confirmation consumes the token")

	live, err := store.LiveTokens(ctx, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestMemoryStoreExpiredTokenDoesNotMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 7654321, now))

	_, err := store.SetTimezoneByToken(ctx, 7654321, "Europe/Berlin", now.Add(31*time.Minute))
	require.ErrorIs(t, err, ErrExpired)

	u, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.Registered())
}

func TestMemoryStoreUnknownToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(30 * time.Minute)
	_, err := store.SetTimezoneByToken(context.Background(), 999, "UTC", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRetryRefreshesWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1111111, now))
	// Retry 29 minutes later with a fresh token restarts the window.
	retry := now.Add(29 * time.Minute)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 2222222, retry))

	// 29 + 20 minutes after the first issue, the second token still works.
	id, err := store.SetTimezoneByToken(ctx, 2222222, "America/Chicago", retry.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	// The first token is no longer anywhere in the directory.
	live, err := store.LiveTokens(ctx, retry)
	require.NoError(t, err)
	_, ok := live[int64(1111111)]
	assert.False(t, ok)
}

func TestMemoryStoreLiveTokensWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2024, time.April, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "fresh", 1000001, now))
	require.NoError(t, store.UpsertRegistrationToken(ctx, "stale", 1000002, now.Add(-31*time.Minute)))

	live, err := store.LiveTokens(ctx, now)
	require.NoError(t, err)
	_, fresh := live[int64(1000001)]
	_, stale := live[int64(1000002)]
	assert.True(t, fresh)
	assert.False(t, stale)
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(30 * time.Minute)
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now()))
	require.NoError(t, store.Delete(ctx, "u1"))

	u, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u)
}
