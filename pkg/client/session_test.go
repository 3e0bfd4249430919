package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeAPI records calls and returns canned results
type fakeAPI struct {
	mu        sync.Mutex
	meCalls   int
	meUser    *models.SessionUser
	meErr     error
	loginResp *AuthResponse
	loginErr  error
	logoutErr error
	onLogout  func(token string)
}

func (f *fakeAPI) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Me(ctx context.Context, token string) (*models.SessionUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	c := *f.meUser
	return &c, nil
}

func (f *fakeAPI) Logout(ctx context.Context, token string) error {
	if f.onLogout != nil {
		f.onLogout(token)
	}
	return f.logoutErr
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls
}

type recordingNavigator struct{ paths []string }

func (n *recordingNavigator) Navigate(p string) { n.paths = append(n.paths, p) }

func newTestSession(api AuthAPI, store Storage, now *time.Time) *Session {
	s := NewSession(api, store, &recordingNavigator{})
	s.cache.now = func() time.Time { return *now }
	return s
}

var alice = &models.SessionUser{ID: "u1", Username: "alice", Role: models.RoleUser, Active: true}

func TestCheckAuth_TwiceWithinWindowCallsOnce(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meUser: alice}
	s := newTestSession(api, NewMemoryStorage(), &now)

	u, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	now = now.Add(4 * time.Minute)
	u, err = s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)

	require.Equal(t, 1, api.calls())
}

func TestCheckAuth_RechecksAfterWindowOrWhenForced(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meUser: alice}
	s := newTestSession(api, NewMemoryStorage(), &now)

	_, _ = s.CheckAuth(context.Background(), false)
	_, _ = s.CheckAuth(context.Background(), true)
	require.Equal(t, 2, api.calls())

	now = now.Add(RecheckWindow + time.Second)
	_, _ = s.CheckAuth(context.Background(), false)
	require.Equal(t, 3, api.calls())
}

func TestCheckAuth_UnauthorizedClearsState(t *testing.T) {
	now := time.Now()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(TokenKey, []byte("tok")))
	api := &fakeAPI{meUser: alice}
	s := newTestSession(api, store, &now)
	_, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)

	api.meErr = fmt.Errorf("%w: %w", ErrUnauthorized, &StatusError{StatusCode: http.StatusUnauthorized})
	u, err := s.CheckAuth(context.Background(), true)
	require.NoError(t, err)
	require.Nil(t, u)
	require.Nil(t, s.User())
	require.Empty(t, s.Token())
	_, ok := s.cache.Load()
	require.False(t, ok)
}

func TestCheckAuth_NetworkErrorKeepsState(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meUser: alice}
	s := newTestSession(api, NewMemoryStorage(), &now)
	_, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)

	for _, fault := range []error{
		errors.New("dial tcp: connection refused"),
		&StatusError{StatusCode: http.StatusServiceUnavailable},
	} {
		api.meErr = fault
		u, err := s.CheckAuth(context.Background(), true)
		require.Error(t, err)
		require.NotNil(t, u)
		require.Equal(t, "u1", u.ID)
		e, ok := s.cache.Load()
		require.True(t, ok)
		require.Equal(t, "u1", e.User.ID)
	}
}

func TestCheckAuth_UnauthorizedAnswerIsNotRecheckedWithinWindow(t *testing.T) {
	now := time.Now()
	store := NewMemoryStorage()
	require.NoError(t, store.Set(TokenKey, []byte("stale")))
	api := &fakeAPI{meErr: fmt.Errorf("%w: %w", ErrUnauthorized, &StatusError{StatusCode: http.StatusUnauthorized})}
	s := newTestSession(api, store, &now)

	u, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Nil(t, u)

	now = now.Add(time.Minute)
	u, err = s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Nil(t, u)
	require.Equal(t, 1, api.calls())

	now = now.Add(RecheckWindow)
	_, _ = s.CheckAuth(context.Background(), false)
	require.Equal(t, 2, api.calls())
}

func TestCheckAuth_NetworkErrorIsNotRecheckedWithinWindow(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meErr: errors.New("dial tcp: connection refused")}
	s := newTestSession(api, NewMemoryStorage(), &now)

	_, err := s.CheckAuth(context.Background(), false)
	require.Error(t, err)

	now = now.Add(time.Second)
	u, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Nil(t, u)
	require.Equal(t, 1, api.calls())

	// forcing still goes to the server
	_, err = s.CheckAuth(context.Background(), true)
	require.Error(t, err)
	require.Equal(t, 2, api.calls())
}

func TestLogout_NextCheckGoesToServer(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meUser: alice, loginResp: &AuthResponse{Success: true, User: alice, Token: "tok-1"}}
	s := newTestSession(api, NewMemoryStorage(), &now)
	require.True(t, s.Login(context.Background(), Credentials{}).Success)
	require.NoError(t, s.Logout(context.Background()))

	_, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, api.calls())
}

func TestCheckAuth_ConcurrentCallsConverge(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{meUser: alice}
	s := newTestSession(api, NewMemoryStorage(), &now)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(force bool) {
			defer wg.Done()
			_, _ = s.CheckAuth(context.Background(), force)
		}(i%2 == 0)
	}
	wg.Wait()
	require.Equal(t, "u1", s.User().ID)
}

func TestNewSession_RestoresCachedUser(t *testing.T) {
	now := time.Now()
	store := NewMemoryStorage()
	first := newTestSession(&fakeAPI{meUser: alice}, store, &now)
	_, err := first.CheckAuth(context.Background(), false)
	require.NoError(t, err)

	api := &fakeAPI{meUser: alice}
	second := NewSession(api, store, nil)
	require.NotNil(t, second.User())
	require.Equal(t, "alice", second.User().Username)
}

func TestLogin(t *testing.T) {
	now := time.Now()
	store := NewMemoryStorage()
	api := &fakeAPI{loginResp: &AuthResponse{Success: true, User: alice, Token: "tok-1"}}
	s := newTestSession(api, store, &now)

	res := s.Login(context.Background(), Credentials{Username: "alice", Password: "pw"})
	require.True(t, res.Success)
	require.Equal(t, "tok-1", s.Token())
	require.Equal(t, "u1", s.User().ID)

	// the fresh login counts as a recent check
	_, err := s.CheckAuth(context.Background(), false)
	require.NoError(t, err)
	require.Zero(t, api.calls())
}

func TestLogin_Failure(t *testing.T) {
	now := time.Now()
	api := &fakeAPI{loginErr: fmt.Errorf("%w: %w", ErrUnauthorized, &StatusError{StatusCode: 401, Message: "invalid credentials"})}
	s := newTestSession(api, NewMemoryStorage(), &now)

	res := s.Login(context.Background(), Credentials{Username: "alice", Password: "nope"})
	require.False(t, res.Success)
	require.Equal(t, "invalid credentials", res.Message)
	require.Nil(t, s.User())

	api.loginErr = errors.New("connection refused")
	res = s.Login(context.Background(), Credentials{})
	require.False(t, res.Success)
	require.Contains(t, res.Message, "Network error")
}

func TestLogout_ClearsBeforeServerAndAlwaysNavigates(t *testing.T) {
	now := time.Now()
	store := NewMemoryStorage()
	nav := &recordingNavigator{}
	api := &fakeAPI{loginResp: &AuthResponse{Success: true, User: alice, Token: "tok-1"}}
	s := NewSession(api, store, nav)
	s.cache.now = func() time.Time { return now }
	require.True(t, s.Login(context.Background(), Credentials{}).Success)

	var sentToken string
	api.onLogout = func(token string) {
		sentToken = token
		// local state is already gone while the server is being told
		_, err := store.Get(CacheKey)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(TokenKey)
		require.ErrorIs(t, err, ErrNotFound)
	}
	api.logoutErr = errors.New("server unreachable")

	err := s.Logout(context.Background())
	require.Error(t, err)
	require.Equal(t, "tok-1", sentToken)
	require.Equal(t, []string{DefaultLoginPath}, nav.paths)
	require.Nil(t, s.User())

	api.logoutErr = nil
	s.SetLoginPath("/signin")
	require.NoError(t, s.Logout(context.Background()))
	require.Equal(t, []string{DefaultLoginPath, "/signin"}, nav.paths)
}
