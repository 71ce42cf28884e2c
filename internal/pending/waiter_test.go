package pending

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/discord"
)

type fakePlatform struct {
	mu      sync.Mutex
	edits   []string
	deletes []string
	editErr error
}

func (f *fakePlatform) EditMessage(_ context.Context, _, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, messageID+"|"+content)
	return nil
}

func (f *fakePlatform) DeleteMessage(_ context.Context, _, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, messageID)
	return nil
}

func (f *fakePlatform) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakePlatform) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

func TestWaiterEditsReplyOnceRegistered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	platform := &fakePlatform{}
	registry := NewRegistry(store, platform, 10*time.Millisecond, time.Minute, nil)

	now := time.Now().UTC()
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, now))

	registry.Watch(Task{
		UserID:    "u1",
		ChannelID: "c1",
		ReplyID:   "r1",
		Instants:  []time.Time{time.Date(2030, time.January, 15, 18, 0, 0, 0, time.UTC)},
	})
	assert.Equal(t, 1, registry.Active())

	// Registration confirms shortly after the waiter starts.
	_, err := store.SetTimezoneByToken(ctx, 1234567, "America/New_York", now)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return platform.editCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	platform.mu.Lock()
	edit := platform.edits[0]
	platform.mu.Unlock()
	assert.True(t, strings.HasPrefix(edit, "r1|"))
	assert.Contains(t, edit, "<t:")
	assert.Equal(t, 1, strings.Count(edit, "<t:"), "expected exactly one rendered tag")
	assert.Zero(t, platform.deleteCount())

	require.Eventually(t, func() bool { return registry.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWaiterDeletesReplyOnTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(30 * time.Millisecond)
	platform := &fakePlatform{}
	registry := NewRegistry(store, platform, 10*time.Millisecond, 30*time.Millisecond, nil)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now().UTC()))
	registry.Watch(Task{UserID: "u1", ChannelID: "c1", ReplyID: "r1"})

	require.Eventually(t, func() bool { return platform.deleteCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, platform.editCount())
	require.Eventually(t, func() bool { return registry.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestWaiterDeletesReplyWhenUserDeregisters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	platform := &fakePlatform{}
	registry := NewRegistry(store, platform, 10*time.Millisecond, time.Minute, nil)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now().UTC()))
	registry.Watch(Task{UserID: "u1", ChannelID: "c1", ReplyID: "r1"})

	require.NoError(t, store.Delete(ctx, "u1"))

	require.Eventually(t, func() bool { return platform.deleteCount() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWaiterTreatsGoneReplyAsDone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	platform := &fakePlatform{editErr: discord.ErrNotFound}
	registry := NewRegistry(store, platform, 10*time.Millisecond, time.Minute, nil)

	now := time.Now().UTC()
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, now))
	_, err := store.SetTimezoneByToken(ctx, 1234567, "UTC", now)
	require.NoError(t, err)

	registry.Watch(Task{
		UserID:    "u1",
		ChannelID: "c1",
		ReplyID:   "r1",
		Instants:  []time.Time{time.Date(2030, time.January, 15, 18, 0, 0, 0, time.UTC)},
	})

	// The edit hits a deleted message; the waiter finishes without
	// escalating and without trying to delete.
	require.Eventually(t, func() bool { return registry.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, platform.deleteCount())
}

func TestRegistryStopAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := directory.NewMemoryStore(time.Minute)
	platform := &fakePlatform{}
	registry := NewRegistry(store, platform, 10*time.Millisecond, time.Minute, nil)

	require.NoError(t, store.UpsertRegistrationToken(ctx, "u1", 1234567, time.Now().UTC()))
	require.NoError(t, store.UpsertRegistrationToken(ctx, "u2", 2345678, time.Now().UTC()))
	registry.Watch(Task{UserID: "u1", ChannelID: "c1", ReplyID: "r1"})
	registry.Watch(Task{UserID: "u2", ChannelID: "c1", ReplyID: "r2"})
	require.Equal(t, 2, registry.Active())

	registry.StopAll()
	require.Eventually(t, func() bool { return registry.Active() == 0 }, 2*time.Second, 5*time.Millisecond)
}
