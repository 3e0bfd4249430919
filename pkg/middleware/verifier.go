package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// SessionVerifier is the minimal interface the gate depends on.
// A (false, nil) result is a definitive rejection; an error means the
// session could not be checked.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// SessionVerifierFunc adapts a function to SessionVerifier.
type SessionVerifierFunc func(ctx context.Context, token string) (bool, error)

func (f SessionVerifierFunc) Verify(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// HTTPVerifierConfig configures an HTTPSessionVerifier.
type HTTPVerifierConfig struct {
	URL         string
	// Timeout bounds each call; zero means 3s.
	Timeout     time.Duration
	// MaxFailures consecutive faults open the breaker; zero means 3.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open; zero means 30s.
	OpenTimeout time.Duration
	Client      *http.Client
}

// HTTPSessionVerifier asks the verify endpoint whether a token is still
// valid. Calls go through a circuit breaker; while it is open Verify
// returns gobreaker.ErrOpenState without a network call.
type HTTPSessionVerifier struct {
	url     string
	timeout time.Duration
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewHTTPSessionVerifier(cfg HTTPVerifierConfig) *HTTPSessionVerifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "session-verify",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &HTTPSessionVerifier{url: cfg.URL, timeout: cfg.Timeout, client: cfg.Client, cb: cb}
}

func (v *HTTPSessionVerifier) Verify(ctx context.Context, token string) (bool, error) {
	res, err := v.cb.Execute(func() (interface{}, error) {
		return v.call(ctx, token)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// State exposes the breaker state for readiness reporting.
func (v *HTTPSessionVerifier) State() gobreaker.State {
	return v.cb.State()
}

func (v *HTTPSessionVerifier) call(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verify request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("verify endpoint returned %d", resp.StatusCode)
	}
}

// TokenAuthenticator resolves a raw token in process.
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, raw string) (*models.SessionUser, error)
}

// LocalSessionVerifier verifies tokens without a network hop. It is used
// when the gate and the API run in the same process.
type LocalSessionVerifier struct {
	authn TokenAuthenticator
}

func NewLocalSessionVerifier(a TokenAuthenticator) *LocalSessionVerifier {
	return &LocalSessionVerifier{authn: a}
}

func (v *LocalSessionVerifier) Verify(ctx context.Context, token string) (bool, error) {
	_, err := v.authn.AuthenticateToken(ctx, token)
	switch {
	case err == nil:
		return true, nil
	case auth.IsRejection(err):
		return false, nil
	default:
		return false, err
	}
}
