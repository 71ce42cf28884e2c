// Package pending owns the placeholder replies posted for unregistered
// users. A waiter per outstanding registration polls the user directory
// until the timezone lands or the handshake window lapses, then edits or
// removes the reply.
package pending

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/convert"
	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/discord"
)

// Platform is the slice of the chat client the waiter needs.
type Platform interface {
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Task describes one outstanding placeholder reply.
type Task struct {
	UserID    string
	ChannelID string
	ReplyID   string
	Instants  []time.Time
}

// Waiter polls the directory for one registration until it resolves.
type Waiter struct {
	store    directory.Store
	platform Platform
	logger   *zap.Logger

	task     Task
	interval time.Duration
	timeout  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func newWaiter(store directory.Store, platform Platform, task Task, interval, timeout time.Duration, logger *zap.Logger) *Waiter {
	return &Waiter{
		store:    store,
		platform: platform,
		logger:   logger,
		task:     task,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

func (w *Waiter) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one directory check. It returns true once the waiter is done,
// whether by confirmation, expiry, or an unrecoverable record state.
func (w *Waiter) poll(ctx context.Context) bool {
	user, err := w.store.Get(ctx, w.task.UserID)
	if err != nil {
		// Transient store trouble; the next tick retries.
		w.logger.Warn("pending poll failed", zap.Error(err), zap.String("user_id", w.task.UserID))
		return false
	}

	// A vanished row means the user deregistered mid-handshake; drop the
	// placeholder the same way expiry does.
	if user == nil {
		w.removeReply(ctx)
		return true
	}

	if !user.Registered() {
		// Confirmation consumes the pending token, so a still-unregistered
		// user with no pending handshake left is past saving.
		if user.PendingSince == nil || time.Now().UTC().Sub(*user.PendingSince) > w.timeout {
			w.removeReply(ctx)
			return true
		}
		return false
	}

	results, err := convert.Render(w.task.Instants, user.Timezone, convert.StyleShortTime)
	if err != nil {
		// A stored zone that does not load is a broken record, not a
		// transient condition. Leave nothing stale behind.
		w.logger.Error("stored timezone rejected by conversion",
			zap.Error(err), zap.String("user_id", w.task.UserID), zap.String("timezone", user.Timezone))
		w.removeReply(ctx)
		return true
	}

	if err := w.platform.EditMessage(ctx, w.task.ChannelID, w.task.ReplyID, convert.ReplyText(results)); err != nil {
		if !errors.Is(err, discord.ErrNotFound) {
			w.logger.Warn("edit pending reply failed", zap.Error(err), zap.String("reply_id", w.task.ReplyID))
		}
		// The user may have deleted the placeholder themselves; done
		// either way.
	}
	return true
}

func (w *Waiter) removeReply(ctx context.Context) {
	err := w.platform.DeleteMessage(ctx, w.task.ChannelID, w.task.ReplyID)
	if err != nil && !errors.Is(err, discord.ErrNotFound) {
		w.logger.Warn("delete pending reply failed", zap.Error(err), zap.String("reply_id", w.task.ReplyID))
	}
}
