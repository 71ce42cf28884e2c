// Package bot wires the inbound event stream to the conversion pipeline:
// extract candidates, parse them, then either convert immediately for a
// registered user or start the registration handshake and hand the
// placeholder reply to a waiter.
package bot

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/convert"
	"github.com/zoneshift/bot/internal/directory"
	"github.com/zoneshift/bot/internal/discord"
	"github.com/zoneshift/bot/internal/extract"
	"github.com/zoneshift/bot/internal/parse"
	"github.com/zoneshift/bot/internal/pending"
	"github.com/zoneshift/bot/internal/reaction"
)

// DeregisterCommand removes the sender's stored data.
const DeregisterCommand = "?time-deregister"

const (
	placeholderText  = "You haven't registered with me yet\nSending you a registration link in a dm..."
	deregisteredText = "You have successfully deregistered"
	badZoneText      = "I can't read your registered timezone anymore. " +
		"Deregister with `" + DeregisterCommand + "` and register again."
	dmFailedText = "I couldn't send you a dm. Allow direct messages from this server and send your time again."
)

// Platform is the slice of the chat client the message pipeline needs.
type Platform interface {
	SendMessage(ctx context.Context, channelID, content string, replyTo *discord.MessageReference) (*discord.Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	FetchChannel(ctx context.Context, channelID string) (*discord.Channel, error)
}

// Registrar starts a registration handshake.
type Registrar interface {
	Begin(ctx context.Context, userID, channelName string) error
}

// Watcher owns placeholder replies awaiting registration.
type Watcher interface {
	Watch(task pending.Task)
}

// ReactionHandler consumes reaction-added events.
type ReactionHandler interface {
	Handle(ctx context.Context, ev *discord.ReactionAdd, botID string)
}

// Handler dispatches gateway events into the pipeline.
type Handler struct {
	platform  Platform
	store     directory.Store
	parser    *parse.Parser
	registrar Registrar
	waiters   Watcher
	reactions ReactionHandler
	storm     *reaction.Registry
	logger    *zap.Logger

	botID atomic.Value // string, set on gateway READY
}

// NewHandler creates the event handler.
func NewHandler(
	platform Platform,
	store directory.Store,
	parser *parse.Parser,
	registrar Registrar,
	waiters Watcher,
	reactions ReactionHandler,
	storm *reaction.Registry,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		platform:  platform,
		store:     store,
		parser:    parser,
		registrar: registrar,
		waiters:   waiters,
		reactions: reactions,
		storm:     storm,
		logger:    logger,
	}
	h.botID.Store("")
	return h
}

// SetReactionHandler wires the reaction consumer after construction. The
// reaction controller regenerates replies through this handler, so the two
// reference each other.
func (h *Handler) SetReactionHandler(r ReactionHandler) {
	h.reactions = r
}

// SetBotUser records the bot's own identity, delivered on gateway READY.
func (h *Handler) SetBotUser(u discord.User) {
	h.botID.Store(u.ID)
}

// BotID returns the bot's own user id, or "" before READY.
func (h *Handler) BotID() string {
	id, _ := h.botID.Load().(string)
	return id
}

// HandleEvent dispatches one decoded gateway event by kind.
func (h *Handler) HandleEvent(ctx context.Context, ev discord.Event) {
	switch ev.Kind {
	case discord.KindMessageCreated:
		h.onMessage(ctx, ev.Message)
	case discord.KindReactionAdded:
		if h.reactions != nil {
			h.reactions.Handle(ctx, ev.Reaction, h.BotID())
		}
	}
}

func (h *Handler) onMessage(ctx context.Context, m *discord.Message) {
	if m == nil || m.Author.Bot || m.Author.System || m.Author.ID == h.BotID() {
		return
	}

	h.stormReact(ctx, m)

	if strings.TrimSpace(m.Content) == DeregisterCommand {
		h.deregister(ctx, m)
		return
	}

	instants := h.instants(m.Content, time.Now())
	if len(instants) == 0 {
		return
	}

	user, err := h.store.Get(ctx, m.Author.ID)
	if err != nil {
		h.logger.Warn("directory lookup failed", zap.Error(err), zap.String("user_id", m.Author.ID))
		return
	}

	ref := &discord.MessageReference{MessageID: m.ID, ChannelID: m.ChannelID}
	if !user.Registered() {
		h.startRegistration(ctx, m, ref, instants)
		return
	}

	results, err := convert.Render(instants, user.Timezone, convert.StyleShortTime)
	if err != nil {
		h.logger.Error("stored timezone rejected by conversion",
			zap.Error(err), zap.String("user_id", m.Author.ID), zap.String("timezone", user.Timezone))
		h.reply(ctx, m.ChannelID, badZoneText, ref)
		return
	}
	if reply := h.reply(ctx, m.ChannelID, convert.ReplyText(results), ref); reply != nil {
		h.attachControls(ctx, reply)
	}
}

func (h *Handler) startRegistration(ctx context.Context, m *discord.Message, ref *discord.MessageReference, instants []time.Time) {
	reply := h.reply(ctx, m.ChannelID, placeholderText, ref)
	if reply == nil {
		return
	}
	h.attachControls(ctx, reply)

	if err := h.registrar.Begin(ctx, m.Author.ID, h.channelName(ctx, m.ChannelID)); err != nil {
		h.logger.Warn("registration handshake failed", zap.Error(err), zap.String("user_id", m.Author.ID))
		if err := h.platform.EditMessage(ctx, reply.ChannelID, reply.ID, dmFailedText); err != nil &&
			!errors.Is(err, discord.ErrNotFound) {
			h.logger.Warn("edit placeholder failed", zap.Error(err), zap.String("reply_id", reply.ID))
		}
		return
	}

	h.waiters.Watch(pending.Task{
		UserID:    m.Author.ID,
		ChannelID: reply.ChannelID,
		ReplyID:   reply.ID,
		Instants:  instants,
	})
}

func (h *Handler) deregister(ctx context.Context, m *discord.Message) {
	if err := h.store.Delete(ctx, m.Author.ID); err != nil {
		h.logger.Error("deregister failed", zap.Error(err), zap.String("user_id", m.Author.ID))
		return
	}
	ref := &discord.MessageReference{MessageID: m.ID, ChannelID: m.ChannelID}
	h.reply(ctx, m.ChannelID, deregisteredText, ref)
}

// RenderedReply re-runs extraction and conversion for a source message; the
// reaction controller uses this to refresh a reply after re-registration.
func (h *Handler) RenderedReply(ctx context.Context, content, authorID string) (string, bool, error) {
	instants := h.instants(content, time.Now())
	if len(instants) == 0 {
		return "", false, nil
	}
	user, err := h.store.Get(ctx, authorID)
	if err != nil {
		return "", false, err
	}
	if !user.Registered() {
		return "", false, nil
	}
	results, err := convert.Render(instants, user.Timezone, convert.StyleShortTime)
	if err != nil {
		return "", false, err
	}
	return convert.ReplyText(results), true, nil
}

func (h *Handler) instants(content string, now time.Time) []time.Time {
	tokens := extract.Candidates(content)
	texts := make([]string, len(tokens))
	for i, tok := range tokens {
		texts[i] = tok.Text
	}
	return h.parser.ParseAll(texts, now)
}

func (h *Handler) reply(ctx context.Context, channelID, content string, ref *discord.MessageReference) *discord.Message {
	msg, err := h.platform.SendMessage(ctx, channelID, content, ref)
	if err != nil {
		if !errors.Is(err, discord.ErrForbidden) {
			h.logger.Warn("send reply failed", zap.Error(err), zap.String("channel_id", channelID))
		}
		return nil
	}
	return msg
}

// attachControls adds the delete and refresh affordances; a missing
// add-reactions permission just leaves the reply bare.
func (h *Handler) attachControls(ctx context.Context, reply *discord.Message) {
	for _, emoji := range []string{reaction.DeleteEmoji, reaction.RefreshEmoji} {
		if err := h.platform.AddReaction(ctx, reply.ChannelID, reply.ID, emoji); err != nil &&
			!errors.Is(err, discord.ErrForbidden) && !errors.Is(err, discord.ErrNotFound) {
			h.logger.Warn("attach control reaction failed", zap.Error(err), zap.String("reply_id", reply.ID))
		}
	}
}

// stormReact applies any running reaction timers for the author.
func (h *Handler) stormReact(ctx context.Context, m *discord.Message) {
	if h.storm == nil || m.GuildID == "" {
		return
	}
	now := time.Now()
	for _, emoji := range h.storm.ActiveFor(m.Author.ID, now) {
		if err := h.platform.AddReaction(ctx, m.ChannelID, m.ID, emoji); err != nil &&
			!errors.Is(err, discord.ErrForbidden) && !errors.Is(err, discord.ErrNotFound) {
			h.logger.Warn("storm reaction failed", zap.Error(err), zap.String("message_id", m.ID))
		}
	}
}

func (h *Handler) channelName(ctx context.Context, channelID string) string {
	ch, err := h.platform.FetchChannel(ctx, channelID)
	if err != nil {
		// Best-effort; the DM wording degrades gracefully without it.
		return ""
	}
	return ch.Name
}
