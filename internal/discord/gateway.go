package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway intents for the event subscriptions the bot needs.
const (
	intentGuilds                = 1 << 0
	intentGuildMessages         = 1 << 9
	intentGuildMessageReactions = 1 << 10
	intentDirectMessages        = 1 << 12
	intentMessageContent        = 1 << 15
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// Gateway maintains the websocket connection to Discord and dispatches
// decoded events to a Handler. Each dispatched event runs on its own
// goroutine.
type Gateway struct {
	url     string
	token   string
	handler Handler
	logger  *zap.Logger

	// onReady receives the bot's own user once per session.
	onReady func(User)

	mu      sync.Mutex
	conn    *websocket.Conn
	lastSeq *int64
}

// NewGateway creates a gateway client. onReady may be nil.
func NewGateway(url, token string, handler Handler, onReady func(User), logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{url: url, token: token, handler: handler, onReady: onReady, logger: logger}
}

// Run connects and consumes gateway events until ctx is cancelled,
// reconnecting with backoff on failures.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := g.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.logger.Warn("gateway session ended", zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (g *Gateway) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	g.mu.Lock()
	g.conn = conn
	g.lastSeq = nil
	g.mu.Unlock()

	// Hello frame carries the heartbeat interval.
	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil {
		return fmt.Errorf("decode hello: %w", err)
	}

	if err := g.identify(); err != nil {
		return err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go g.heartbeatLoop(sessionCtx, time.Duration(helloData.HeartbeatInterval)*time.Millisecond)

	for {
		var payload gatewayPayload
		if err := conn.ReadJSON(&payload); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if payload.S != nil {
			g.mu.Lock()
			g.lastSeq = payload.S
			g.mu.Unlock()
		}

		switch payload.Op {
		case opDispatch:
			g.dispatch(ctx, payload)
		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return err
			}
		case opReconnect, opInvalidSession:
			return fmt.Errorf("gateway requested reconnect (op %d)", payload.Op)
		case opHeartbeatAck:
			// nothing to do
		}
	}
}

func (g *Gateway) identify() error {
	identify := gatewayPayload{Op: opIdentify}
	data, err := json.Marshal(map[string]interface{}{
		"token": g.token,
		"intents": intentGuilds | intentGuildMessages | intentGuildMessageReactions |
			intentDirectMessages | intentMessageContent,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "zoneshift",
			"device":  "zoneshift",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal identify: %w", err)
	}
	identify.D = data
	return g.writeJSON(identify)
}

func (g *Gateway) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Warn("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	g.mu.Lock()
	seq := g.lastSeq
	g.mu.Unlock()
	payload := gatewayPayload{Op: opHeartbeat}
	if seq != nil {
		raw, _ := json.Marshal(*seq)
		payload.D = raw
	}
	return g.writeJSON(payload)
}

func (g *Gateway) writeJSON(v interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return g.conn.WriteJSON(v)
}

func (g *Gateway) dispatch(ctx context.Context, payload gatewayPayload) {
	switch payload.T {
	case "READY":
		var ready struct {
			User User `json:"user"`
		}
		if err := json.Unmarshal(payload.D, &ready); err != nil {
			g.logger.Warn("decode ready failed", zap.Error(err))
			return
		}
		g.logger.Info("gateway ready", zap.String("bot_user_id", ready.User.ID))
		if g.onReady != nil {
			g.onReady(ready.User)
		}
	case "MESSAGE_CREATE":
		var msg Message
		if err := json.Unmarshal(payload.D, &msg); err != nil {
			g.logger.Warn("decode message_create failed", zap.Error(err))
			return
		}
		go g.handler.HandleEvent(ctx, Event{Kind: KindMessageCreated, Message: &msg})
	case "MESSAGE_REACTION_ADD":
		var reaction ReactionAdd
		if err := json.Unmarshal(payload.D, &reaction); err != nil {
			g.logger.Warn("decode reaction_add failed", zap.Error(err))
			return
		}
		go g.handler.HandleEvent(ctx, Event{Kind: KindReactionAdded, Reaction: &reaction})
	}
}
