package discord

import "context"

// User is a Discord user as carried on gateway events and messages.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
	System   bool   `json:"system"`
}

// MessageReference is the reply back-link from a message to its source.
type MessageReference struct {
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Message is a channel message.
type Message struct {
	ID               string            `json:"id"`
	ChannelID        string            `json:"channel_id"`
	GuildID          string            `json:"guild_id,omitempty"`
	Author           User              `json:"author"`
	Content          string            `json:"content"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// Channel is the subset of channel fields the bot reads.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Emoji identifies a reaction emoji; unicode emoji have only Name set.
type Emoji struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReactionAdd is the payload of a reaction-added gateway event.
type ReactionAdd struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Emoji     Emoji  `json:"emoji"`
}

// EventKind discriminates decoded gateway events.
type EventKind int

const (
	KindMessageCreated EventKind = iota + 1
	KindReactionAdded
)

// Event is the tagged union handed to the dispatcher. Exactly one payload
// field is set, selected by Kind.
type Event struct {
	Kind     EventKind
	Message  *Message
	Reaction *ReactionAdd
}

// Handler consumes decoded gateway events. Each event is dispatched on its
// own goroutine; implementations must be safe for concurrent use.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event)
}
