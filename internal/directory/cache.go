package directory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "zoneshift:user:"
	cacheTTL       = 30 * time.Second
)

// CachedStore is a read-through Redis cache in front of another Store.
// Writes go to the inner store first, then drop the cached row. Both the
// bot and the web process share the same Redis, so a confirmation handled
// by the web process invalidates the bot's view as well.
type CachedStore struct {
	inner  Store
	client *redis.Client
	logger *zap.Logger
}

// NewCachedStore wraps inner with a Redis cache.
func NewCachedStore(inner Store, client *redis.Client, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{inner: inner, client: client, logger: logger}
}

// Get returns a cached row when present, otherwise reads through. Redis
// failures degrade to the inner store.
func (s *CachedStore) Get(ctx context.Context, id string) (*User, error) {
	raw, err := s.client.Get(ctx, cacheKeyPrefix+id).Result()
	if err == nil {
		var u User
		if jsonErr := json.Unmarshal([]byte(raw), &u); jsonErr == nil {
			return &u, nil
		}
		s.invalidate(ctx, id)
	} else if err != redis.Nil {
		s.logger.Debug("user cache read failed", zap.Error(err), zap.String("user_id", id))
	}

	u, err := s.inner.Get(ctx, id)
	if err != nil || u == nil {
		return u, err
	}
	if raw, err := json.Marshal(u); err == nil {
		if err := s.client.Set(ctx, cacheKeyPrefix+id, raw, cacheTTL).Err(); err != nil {
			s.logger.Debug("user cache write failed", zap.Error(err), zap.String("user_id", id))
		}
	}
	return u, nil
}

// UpsertRegistrationToken writes through and invalidates.
func (s *CachedStore) UpsertRegistrationToken(ctx context.Context, id string, token int64, now time.Time) error {
	if err := s.inner.UpsertRegistrationToken(ctx, id, token, now); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// LiveTokens is never cached; collision checks need current state.
func (s *CachedStore) LiveTokens(ctx context.Context, now time.Time) (map[int64]struct{}, error) {
	return s.inner.LiveTokens(ctx, now)
}

// SetTimezoneByToken writes through and invalidates the confirmed user.
func (s *CachedStore) SetTimezoneByToken(ctx context.Context, token int64, zone string, now time.Time) (string, error) {
	id, err := s.inner.SetTimezoneByToken(ctx, token, zone, now)
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, id)
	return id, nil
}

// Delete writes through and invalidates.
func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *CachedStore) invalidate(ctx context.Context, id string) {
	if err := s.client.Del(ctx, cacheKeyPrefix+id).Err(); err != nil {
		s.logger.Warn("user cache invalidation failed", zap.Error(err), zap.String("user_id", id))
	}
}
