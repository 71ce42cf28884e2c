// Package directory is the user directory: the mapping from a Discord user
// id to their registered timezone and any pending registration handshake.
package directory

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means no record matched the given registration token.
	ErrNotFound = errors.New("registration token not found")
	// ErrExpired means the token's validity window has lapsed; the record
	// is left untouched.
	ErrExpired = errors.New("registration token expired")
)

// User is one registered-or-pending row. An empty Timezone means the user
// has not completed registration; PendingToken is set only while a
// handshake is outstanding.
type User struct {
	ID           string     `json:"id"`
	Timezone     string     `json:"timezone"`
	PendingToken *int64     `json:"pending_token,omitempty"`
	PendingSince *time.Time `json:"pending_since,omitempty"`
}

// Registered reports whether the user has a confirmed timezone.
func (u *User) Registered() bool {
	return u != nil && u.Timezone != ""
}

// Store is the persistence contract for the user directory. All methods
// are safe for concurrent use; single-row semantics suffice.
type Store interface {
	// Get returns the user or (nil, nil) when absent.
	Get(ctx context.Context, id string) (*User, error)

	// UpsertRegistrationToken creates the record if absent, otherwise
	// overwrites the pending token and refreshes the pending timestamp,
	// which restarts the validity window for retries.
	UpsertRegistrationToken(ctx context.Context, id string, token int64, now time.Time) error

	// LiveTokens returns the set of tokens still inside their validity
	// window. The issuing side redraws on collision against this set.
	LiveTokens(ctx context.Context, now time.Time) (map[int64]struct{}, error)

	// SetTimezoneByToken looks a record up by token and sets its timezone
	// if the token is still valid, consuming the token. It returns the
	// user id on success, ErrExpired past the window, or ErrNotFound for
	// an unknown token.
	SetTimezoneByToken(ctx context.Context, token int64, zone string, now time.Time) (string, error)

	// Delete removes the row entirely (user-initiated deregistration).
	Delete(ctx context.Context, id string) error
}
