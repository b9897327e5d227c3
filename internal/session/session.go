// Package session carries the authenticated identity of a request and
// tracks revoked session tokens.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CookieName is the browser cookie holding the session token.
const CookieName = "dreamnest_session"

type Session struct {
	UserID    uuid.UUID
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// Store remembers revoked token ids until they would have expired anyway.
type Store interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session, or nil when unauthenticated.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}
