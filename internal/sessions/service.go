package sessions

import (
	"context"
	"errors"
	"time"
)

// Service wraps repository operations with business logic
type Service struct {
	repo   Repository
	maxAge time.Duration
	now    func() time.Time
}

// NewService returns a revocation service. maxAge is the session lifetime
// used to decide how long a revocation must be kept.
func NewService(r Repository, maxAge time.Duration) *Service {
	return &Service{repo: r, maxAge: maxAge, now: time.Now}
}

// Revoke records token as logged out. Tokens already past their lifetime
// are ignored.
func (s *Service) Revoke(ctx context.Context, token, sub string, issuedAt time.Time) error {
	if token == "" {
		return errors.New("empty token")
	}
	now := s.now().UTC()
	expiresAt := issuedAt.Add(s.maxAge).UTC()
	if !expiresAt.After(now) {
		return nil
	}
	return s.repo.Add(ctx, &Revocation{
		Key:       Key(token),
		Sub:       sub,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
}

// IsRevoked reports whether token was revoked and is still within its lifetime.
func (s *Service) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.repo.Exists(ctx, Key(token))
}
