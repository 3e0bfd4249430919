package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/tokens"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAge is the lifetime of a session token.
const DefaultMaxAge = 7 * 24 * time.Hour

// UserLookup resolves a token subject to a stored user. A missing user is
// reported as (nil, nil).
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// RevocationChecker reports tokens that were explicitly logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Options configures an Authenticator. Zero values select defaults.
type Options struct {
	CookieName  string
	QueryParam  string
	MaxAge      time.Duration
	Revocations RevocationChecker
}

// Authenticator resolves a request's token to a session user.
// It is read-only and safe for concurrent use.
type Authenticator struct {
	codec       *tokens.Codec
	users       UserLookup
	revocations RevocationChecker
	cookieName  string
	queryParam  string
	maxAge      time.Duration
	now         func() time.Time
	tracer      trace.Tracer
}

func NewAuthenticator(codec *tokens.Codec, users UserLookup, opts Options) *Authenticator {
	a := &Authenticator{
		codec:       codec,
		users:       users,
		revocations: opts.Revocations,
		cookieName:  opts.CookieName,
		queryParam:  opts.QueryParam,
		maxAge:      opts.MaxAge,
		now:         time.Now,
		tracer:      otel.Tracer("ledgerly/auth"),
	}
	if a.cookieName == "" {
		a.cookieName = DefaultCookieName
	}
	if a.queryParam == "" {
		a.queryParam = DefaultQueryParam
	}
	if a.maxAge <= 0 {
		a.maxAge = DefaultMaxAge
	}
	return a
}

func (a *Authenticator) CookieName() string { return a.cookieName }

func (a *Authenticator) MaxAge() time.Duration { return a.maxAge }

// Token extracts the raw token from r using the configured channels.
func (a *Authenticator) Token(r *http.Request) (string, TokenSource) {
	return ExtractToken(r, a.cookieName, a.queryParam)
}

// Authenticate returns the user the request's token belongs to. Exactly one
// of the results is non-nil.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*models.SessionUser, error) {
	raw, src := a.Token(r)
	ctx, span := a.tracer.Start(ctx, "auth.Authenticate", trace.WithAttributes(
		attribute.String("auth.token_source", string(src)),
	))
	defer span.End()

	u, err := a.resolve(ctx, raw)
	span.SetAttributes(attribute.String("auth.result", Code(err)))
	if err != nil {
		span.SetStatus(codes.Error, Code(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.role", u.Role))
	return u, nil
}

// AuthenticateToken is Authenticate for a token obtained out of band.
func (a *Authenticator) AuthenticateToken(ctx context.Context, raw string) (*models.SessionUser, error) {
	ctx, span := a.tracer.Start(ctx, "auth.AuthenticateToken")
	defer span.End()
	u, err := a.resolve(ctx, raw)
	if err != nil {
		span.SetStatus(codes.Error, Code(err))
	}
	return u, err
}

// Claims parses raw and applies the age check without touching any store.
func (a *Authenticator) Claims(raw string) (tokens.Claims, error) {
	if raw == "" {
		return tokens.Claims{}, ErrNoToken
	}
	claims, err := a.codec.Parse(raw)
	if err != nil {
		return tokens.Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Age(a.now()) > a.maxAge {
		return tokens.Claims{}, ErrTokenExpired
	}
	return claims, nil
}

func (a *Authenticator) resolve(ctx context.Context, raw string) (*models.SessionUser, error) {
	claims, err := a.Claims(raw)
	if err != nil {
		return nil, err
	}
	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: revocation lookup: %w", ErrStore, err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	u, err := a.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u.Session(), nil
}
