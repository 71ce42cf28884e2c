package discord

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound covers 404s: deleted messages, unknown channels. Flows
	// racing a manual delete treat this as a benign outcome.
	ErrNotFound = errors.New("discord: not found")
	// ErrForbidden covers 403s: missing permissions. Side effects hitting
	// this are skipped, never retried.
	ErrForbidden = errors.New("discord: forbidden")
)

// APIError is a non-2xx REST response outside the classified cases.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: api status %d: %s", e.Status, e.Body)
}

func classifyStatus(status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return &APIError{Status: status, Body: string(body)}
	}
}
