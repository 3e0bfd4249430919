package auth

import (
	"context"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
)

// ContextKey is the gin context key holding the *models.SessionUser.
const ContextKey = "user"

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.SessionUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated user stored by WithUser.
func UserFromContext(ctx context.Context) (*models.SessionUser, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.SessionUser)
	return u, ok && u != nil
}
