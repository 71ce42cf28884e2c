// Package reaction governs the lifecycle of the bot's own replies through
// reaction controls, and tracks timed reaction triggers.
package reaction

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/discord"
)

// Control emoji recognized on bot replies.
const (
	DeleteEmoji  = "❌"
	RefreshEmoji = "🔄"
)

// Platform is the slice of the chat client the controller needs.
type Platform interface {
	FetchMessage(ctx context.Context, channelID, messageID string) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
}

// Regenerator re-runs extraction and conversion for a source message.
// ok is false when the content has no usable time tokens or the author is
// not registered.
type Regenerator interface {
	RenderedReply(ctx context.Context, content, authorID string) (reply string, ok bool, err error)
}

// Controller handles reaction-added events on bot replies. Only the author
// of the original converted message may delete or refresh the reply.
type Controller struct {
	platform Platform
	regen    Regenerator
	logger   *zap.Logger
}

// NewController creates a reaction controller.
func NewController(platform Platform, regen Regenerator, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{platform: platform, regen: regen, logger: logger}
}

// Handle processes one reaction-added event. botID is the bot's own user
// id; reactions on foreign messages, the bot's own reactions, and
// unrecognized emoji are all ignored silently.
func (c *Controller) Handle(ctx context.Context, ev *discord.ReactionAdd, botID string) {
	if ev.UserID == botID {
		return
	}
	if ev.Emoji.Name != DeleteEmoji && ev.Emoji.Name != RefreshEmoji {
		return
	}

	reply, err := c.platform.FetchMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		if !errors.Is(err, discord.ErrNotFound) {
			c.logger.Warn("fetch reacted message failed", zap.Error(err), zap.String("message_id", ev.MessageID))
		}
		return
	}
	if reply.Author.ID != botID || reply.MessageReference == nil {
		return
	}

	srcChannel := reply.MessageReference.ChannelID
	if srcChannel == "" {
		srcChannel = ev.ChannelID
	}
	src, err := c.platform.FetchMessage(ctx, srcChannel, reply.MessageReference.MessageID)
	if err != nil {
		if !errors.Is(err, discord.ErrNotFound) {
			c.logger.Warn("fetch source message failed", zap.Error(err), zap.String("message_id", reply.MessageReference.MessageID))
		}
		return
	}

	if ev.UserID != src.Author.ID {
		// Not the person whose message was converted; retract and stop.
		c.retract(ctx, ev)
		return
	}

	switch ev.Emoji.Name {
	case DeleteEmoji:
		if err := c.platform.DeleteMessage(ctx, ev.ChannelID, ev.MessageID); err != nil &&
			!errors.Is(err, discord.ErrNotFound) && !errors.Is(err, discord.ErrForbidden) {
			c.logger.Warn("delete reply failed", zap.Error(err), zap.String("message_id", ev.MessageID))
		}
	case RefreshEmoji:
		c.retract(ctx, ev)
		c.refresh(ctx, ev, src)
	}
}

func (c *Controller) refresh(ctx context.Context, ev *discord.ReactionAdd, src *discord.Message) {
	content, ok, err := c.regen.RenderedReply(ctx, src.Content, src.Author.ID)
	if err != nil {
		c.logger.Error("refresh render failed", zap.Error(err), zap.String("user_id", src.Author.ID))
		return
	}
	if !ok {
		return
	}
	if err := c.platform.EditMessage(ctx, ev.ChannelID, ev.MessageID, content); err != nil &&
		!errors.Is(err, discord.ErrNotFound) {
		c.logger.Warn("refresh edit failed", zap.Error(err), zap.String("message_id", ev.MessageID))
	}
}

// retract best-effort removes the triggering reaction; missing permission
// to do so is not worth surfacing.
func (c *Controller) retract(ctx context.Context, ev *discord.ReactionAdd) {
	err := c.platform.RemoveReaction(ctx, ev.ChannelID, ev.MessageID, ev.Emoji.Name, ev.UserID)
	if err != nil && !errors.Is(err, discord.ErrForbidden) && !errors.Is(err, discord.ErrNotFound) {
		c.logger.Warn("retract reaction failed", zap.Error(err), zap.String("message_id", ev.MessageID))
	}
}
