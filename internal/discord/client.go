// Package discord is the chat-platform collaborator: a REST client for
// message and reaction operations plus a gateway client for inbound events.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Client calls the Discord REST API.
type Client struct {
	httpClient *http.Client
	base       string
	token      string
	logger     *zap.Logger
}

// NewClient creates a REST client authenticated with the bot token.
func NewClient(base, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		base:       base,
		token:      token,
		logger:     logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type createMessageRequest struct {
	Content          string            `json:"content"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// SendMessage posts a message to a channel, optionally as a reply.
func (c *Client) SendMessage(ctx context.Context, channelID, content string, replyTo *MessageReference) (*Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages",
		createMessageRequest{Content: content, MessageReference: replyTo}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessage replaces the content of an existing message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID,
		map[string]string{"content": content}, nil)
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil)
}

// FetchMessage retrieves a message by id.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID string) (*Message, error) {
	var msg Message
	err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/messages/"+messageID, nil, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FetchChannel retrieves a channel by id.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// AddReaction adds the bot's own reaction to a message.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// RemoveReaction removes another user's reaction from a message.
func (c *Client) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/%s",
		channelID, messageID, url.PathEscape(emoji), userID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SendDirectMessage opens (or reuses) the DM channel with a user and sends
// content there.
func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	var channel struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels",
		map[string]string{"recipient_id": userID}, &channel)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := c.SendMessage(ctx, channel.ID, content, nil); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}
