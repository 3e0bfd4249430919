package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnauthorized is returned when the server rejects the session (401/403).
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response the client does not interpret further.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Credentials are sent to the login and register endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the body returned by the auth endpoints.
type AuthResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Error   string              `json:"error,omitempty"`
	User    *models.SessionUser `json:"user,omitempty"`
	Token   string              `json:"token,omitempty"`
}

// API talks to the /api/auth endpoints of a Ledgerly server.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI returns an API for baseURL. A nil client selects a traced client
// with a 10s timeout.
func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &API{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

func (a *API) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return a.do(ctx, http.MethodPost, "/api/auth/login", "", creds)
}

func (a *API) Register(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return a.do(ctx, http.MethodPost, "/api/auth/register", "", creds)
}

// Me returns the user the token belongs to.
func (a *API) Me(ctx context.Context, token string) (*models.SessionUser, error) {
	resp, err := a.do(ctx, http.MethodGet, "/api/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &StatusError{StatusCode: http.StatusOK, Message: "response carried no user"}
	}
	return resp.User, nil
}

func (a *API) Logout(ctx context.Context, token string) error {
	_, err := a.do(ctx, http.MethodPost, "/api/auth/logout", token, nil)
	return err
}

func (a *API) do(ctx context.Context, method, path, token string, body interface{}) (*AuthResponse, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var out AuthResponse
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	decodeErr := json.Unmarshal(raw, &out)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		se := &StatusError{StatusCode: res.StatusCode, Message: msg}
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			return &out, fmt.Errorf("%w: %w", ErrUnauthorized, se)
		}
		return &out, se
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s %s: decode: %w", method, path, decodeErr)
	}
	return &out, nil
}
