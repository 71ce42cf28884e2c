// Package handshake issues registration link tokens and delivers the
// out-of-band confirmation link. A user moves from unregistered to
// token-issued here; confirmation or expiry happens elsewhere (the web
// endpoint and the pending-reply waiter respectively).
package handshake

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/zoneshift/bot/internal/directory"
)

// Link tokens are 7-digit ids, matching the path segment the web process
// serves.
const (
	tokenMin = 1_000_000
	tokenMax = 9_999_999

	// maxDraws bounds the redraw loop; collisions are only possible
	// against concurrently pending registrations, so hitting this means
	// something is badly wrong with the directory.
	maxDraws = 128
)

// Messenger is the slice of the platform client the handshake needs.
type Messenger interface {
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// Service issues tokens and sends registration links.
type Service struct {
	store  directory.Store
	dm     Messenger
	appURL string
	logger *zap.Logger

	draw func() int64 // overridable in tests
}

// NewService creates a handshake service. appURL is the public base URL of
// the registration web process.
func NewService(store directory.Store, dm Messenger, appURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		dm:     dm,
		appURL: appURL,
		logger: logger,
		draw: func() int64 {
			return tokenMin + rand.Int63n(tokenMax-tokenMin+1)
		},
	}
}

// Begin issues a link token for userID and DMs the registration link.
// The token never collides with another token still inside its validity
// window. Re-entering while a handshake is already pending overwrites the
// token and restarts the window, so a user can retry without stacking
// duplicate links. channelName names the channel the triggering message
// was sent in, for the re-registration hint in the DM.
func (s *Service) Begin(ctx context.Context, userID, channelName string) error {
	now := time.Now().UTC()

	live, err := s.store.LiveTokens(ctx, now)
	if err != nil {
		return fmt.Errorf("list live tokens: %w", err)
	}

	var token int64
	for i := 0; ; i++ {
		token = s.draw()
		if _, used := live[token]; !used {
			break
		}
		if i >= maxDraws {
			return fmt.Errorf("no free link token after %d draws", maxDraws)
		}
	}

	if err := s.store.UpsertRegistrationToken(ctx, userID, token, now); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	s.logger.Info("registration link issued",
		zap.String("user_id", userID),
		zap.Int64("link_id", token),
	)
	return s.dm.SendDirectMessage(ctx, userID, s.linkMessage(token, channelName))
}

func (s *Service) linkMessage(token int64, channelName string) string {
	where := "the channel you used the bot in"
	if channelName != "" {
		where = "the #" + channelName + " channel"
	}
	return fmt.Sprintf(
		"Visit this link to register your timezone:\n\n<%s/register/%d>\n\n"+
			"This will collect and store your discord id and your timezone. "+
			"Both are only used to understand what time you mean when you use the bot. "+
			"You can delete this data at any time with `?time-deregister` "+
			"and re-register by sending another time in %s.",
		s.appURL, token, where,
	)
}
