package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
)

// TokenKey is the storage key of the bearer token.
const TokenKey = "ledgerly_auth_token"

// DefaultLoginPath is where Logout navigates to.
const DefaultLoginPath = "/login"

// AuthAPI is the server surface a Session depends on.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*AuthResponse, error)
	Me(ctx context.Context, token string) (*models.SessionUser, error)
	Logout(ctx context.Context, token string) error
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Result is the outcome of a login attempt.
type Result struct {
	Success bool
	Message string
}

// Session is the client-side view of the signed-in user. It answers from
// the cache while the last server check is recent and keeps the cached
// state when the server cannot be reached.
type Session struct {
	mu        sync.Mutex
	api       AuthAPI
	store     Storage
	cache     *Cache
	nav       Navigator
	loginPath string
	user      *models.SessionUser
	// lastCheck is when the last server check completed, successful or not.
	lastCheck time.Time
}

func NewSession(api AuthAPI, store Storage, nav Navigator) *Session {
	s := &Session{
		api:       api,
		store:     store,
		cache:     NewCache(store),
		nav:       nav,
		loginPath: DefaultLoginPath,
	}
	if e, ok := s.cache.Load(); ok {
		s.user = e.User
	}
	return s
}

// SetLoginPath changes where Logout navigates to.
func (s *Session) SetLoginPath(p string) {
	s.mu.Lock()
	s.loginPath = p
	s.mu.Unlock()
}

// User returns the current user or nil.
func (s *Session) User() *models.SessionUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the stored bearer token or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token()
}

// CheckAuth returns the signed-in user. Unless force is set, no server call
// is made within RecheckWindow of the last completed check or cached login.
// A 401/403 from the server clears the session and yields (nil, nil). Any
// other failure leaves the cached state in place and returns it with the
// error.
func (s *Session) CheckAuth(ctx context.Context, force bool) (*models.SessionUser, error) {
	s.mu.Lock()
	last := s.lastCheck
	if e, ok := s.cache.Load(); ok {
		s.user = e.User
		if t := e.Time(); t.After(last) {
			last = t
		}
	}
	if !force && !last.IsZero() && s.cache.now().Sub(last) < RecheckWindow {
		u := s.user
		s.mu.Unlock()
		return u, nil
	}
	tok := s.token()
	s.mu.Unlock()

	u, err := s.api.Me(ctx, tok)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheck = s.cache.now()
	switch {
	case err == nil:
		s.user = u
		if serr := s.cache.Save(u); serr != nil {
			logger.Warnf("session cache: save failed: %v", serr)
		}
		return u, nil
	case errors.Is(err, ErrUnauthorized):
		s.clear()
		return nil, nil
	default:
		logger.Warnf("session check failed, keeping cached state: %v", err)
		return s.user, err
	}
}

// Login exchanges credentials for a session and caches the user.
func (s *Session) Login(ctx context.Context, creds Credentials) Result {
	resp, err := s.api.Login(ctx, creds)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Message != "" {
			return Result{Success: false, Message: se.Message}
		}
		return Result{Success: false, Message: "Network error: " + err.Error()}
	}
	if !resp.Success || resp.User == nil {
		msg := resp.Error
		if msg == "" {
			msg = "Login failed"
		}
		return Result{Success: false, Message: msg}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if resp.Token != "" {
		if err := s.store.Set(TokenKey, []byte(resp.Token)); err != nil {
			return Result{Success: false, Message: "could not store session: " + err.Error()}
		}
	}
	s.user = resp.User
	s.lastCheck = s.cache.now()
	if err := s.cache.Save(resp.User); err != nil {
		logger.Warnf("session cache: save failed: %v", err)
	}
	msg := resp.Message
	if msg == "" {
		msg = "Login successful"
	}
	return Result{Success: true, Message: msg}
}

// Logout clears local state first, then tells the server, then always
// navigates to the login page. The server error, if any, is returned.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	tok := s.token()
	s.clear()
	s.lastCheck = time.Time{}
	nav, loginPath := s.nav, s.loginPath
	s.mu.Unlock()

	defer func() {
		if nav != nil {
			nav.Navigate(loginPath)
		}
	}()

	if err := s.api.Logout(ctx, tok); err != nil {
		logger.Warnf("logout request failed: %v", err)
		return err
	}
	return nil
}

func (s *Session) token() string {
	b, err := s.store.Get(TokenKey)
	if err != nil {
		return ""
	}
	return string(b)
}

func (s *Session) clear() {
	s.user = nil
	if err := s.cache.Save(nil); err != nil {
		logger.Warnf("session cache: clear failed: %v", err)
	}
	if err := s.store.Delete(TokenKey); err != nil {
		logger.Warnf("session token: delete failed: %v", err)
	}
}
