package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthenticator maps bearer tokens to users or errors
type fakeAuthenticator struct {
	users map[string]*models.SessionUser
	errs  map[string]error
}

func (f *fakeAuthenticator) Authenticate(ctx context.Context, r *http.Request) (*models.SessionUser, error) {
	tok, _ := auth.ExtractToken(r, auth.DefaultCookieName, auth.DefaultQueryParam)
	if tok == "" {
		return nil, auth.ErrNoToken
	}
	if err, ok := f.errs[tok]; ok {
		return nil, err
	}
	if u, ok := f.users[tok]; ok {
		c := *u
		return &c, nil
	}
	return nil, fmt.Errorf("%w: unknown", auth.ErrInvalidToken)
}

func newFakeAuthenticator() *fakeAuthenticator {
	return &fakeAuthenticator{
		users: map[string]*models.SessionUser{
			"user-token":  {ID: "u1", Username: "alice", Role: models.RoleUser, Active: true},
			"admin-token": {ID: "a1", Username: "root", Role: models.RoleAdmin, Active: true},
		},
		errs: map[string]error{
			"expired-token": auth.ErrTokenExpired,
			"store-token":   fmt.Errorf("%w: mongo: connection refused", auth.ErrStore),
		},
	}
}

func serve(t *testing.T, h gin.HandlerFunc, token string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/x", h)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func decode(t *testing.T, rw *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	return got
}

func okHandler(c *gin.Context) {
	u, _ := auth.UserFromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"success": true, "id": u.ID})
}

func TestAuthorizer_Unauthenticated(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	called := false
	h := z.Wrap(func(c *gin.Context) { called = true; c.Status(http.StatusOK) })

	for tok, code := range map[string]string{"": "no_token", "garbage": "invalid_token", "expired-token": "token_expired"} {
		rw := serve(t, h, tok)
		require.Equal(t, http.StatusUnauthorized, rw.Code, "token %q", tok)
		body := decode(t, rw)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, code, body["code"])
		assert.NotContains(t, body, "details")
	}
	require.False(t, called, "wrapped handler must not run")
}

func TestAuthorizer_StoreErrorIs500(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	rw := serve(t, z.Wrap(okHandler), "store-token")

	require.Equal(t, http.StatusInternalServerError, rw.Code)
	body := decode(t, rw)
	assert.Equal(t, "store_error", body["code"])
	assert.NotContains(t, rw.Body.String(), "connection refused")
}

func TestAuthorizer_DefaultRoleIsUser(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	h := z.Wrap(okHandler)

	rw := serve(t, h, "user-token")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "u1", decode(t, rw)["id"])

	// admins do not implicitly hold the user role
	rw = serve(t, h, "admin-token")
	require.Equal(t, http.StatusForbidden, rw.Code)
}

func TestAuthorizer_AdminOnly(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	h := z.Wrap(okHandler, models.RoleAdmin)

	rw := serve(t, h, "user-token")
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.JSONEq(t, `{"success":false,"error":"forbidden"}`, rw.Body.String())

	rw = serve(t, h, "admin-token")
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestAuthorizer_AnyRole(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	h := z.Wrap(okHandler, AnyRole)

	require.Equal(t, http.StatusOK, serve(t, h, "user-token").Code)
	require.Equal(t, http.StatusOK, serve(t, h, "admin-token").Code)
	require.Equal(t, http.StatusUnauthorized, serve(t, h, "").Code)
}

func TestAuthorizer_SetsGinContextUser(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	var got *models.SessionUser
	rw := serve(t, z.Wrap(func(c *gin.Context) {
		v, ok := c.Get(auth.ContextKey)
		require.True(t, ok)
		got = v.(*models.SessionUser)
		c.Status(http.StatusNoContent)
	}), "user-token")

	require.Equal(t, http.StatusNoContent, rw.Code)
	require.Equal(t, "alice", got.Username)
}

func TestAuthorizer_PanicBecomes500(t *testing.T) {
	h := func(c *gin.Context) { panic("secret internal state") }

	rw := serve(t, NewAuthorizer(newFakeAuthenticator(), false).Wrap(h), "user-token")
	require.Equal(t, http.StatusInternalServerError, rw.Code)
	require.NotContains(t, rw.Body.String(), "secret internal state")
	require.JSONEq(t, `{"success":false,"error":"internal server error"}`, rw.Body.String())

	rw = serve(t, NewAuthorizer(newFakeAuthenticator(), true).Wrap(h), "user-token")
	require.Equal(t, http.StatusInternalServerError, rw.Code)
	require.Contains(t, decode(t, rw)["details"], "secret internal state")
}

func TestAuthorizer_UnansweredErrorBecomes500(t *testing.T) {
	h := func(c *gin.Context) { _ = c.Error(errors.New("ledger write failed")) }

	rw := serve(t, NewAuthorizer(newFakeAuthenticator(), false).Wrap(h), "user-token")
	require.Equal(t, http.StatusInternalServerError, rw.Code)
	require.NotContains(t, rw.Body.String(), "ledger write failed")

	rw = serve(t, NewAuthorizer(newFakeAuthenticator(), true).Wrap(h), "user-token")
	require.Equal(t, "ledger write failed", decode(t, rw)["details"])
}

func TestAuthorizer_NoResponseBecomes500(t *testing.T) {
	rw := serve(t, NewAuthorizer(newFakeAuthenticator(), false).Wrap(func(c *gin.Context) {}), "user-token")
	require.Equal(t, http.StatusInternalServerError, rw.Code)
	require.NotEmpty(t, rw.Body.String())
}

func TestAuthorizer_BareStatusOKIsAResponse(t *testing.T) {
	rw := serve(t, NewAuthorizer(newFakeAuthenticator(), false).Wrap(func(c *gin.Context) {
		c.Status(http.StatusOK)
	}), "user-token")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Body.String())
}

func TestAuthorizer_AnyRoleAmongOthers(t *testing.T) {
	z := NewAuthorizer(newFakeAuthenticator(), false)
	h := z.Wrap(okHandler, models.RoleAdmin, AnyRole)
	require.Equal(t, http.StatusOK, serve(t, h, "user-token").Code)
}

func TestAuthorizer_HandlerResponseKeptAfterError(t *testing.T) {
	h := func(c *gin.Context) {
		_ = c.Error(errors.New("logged only"))
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "conflict"})
	}
	rw := serve(t, NewAuthorizer(newFakeAuthenticator(), false).Wrap(h), "user-token")
	require.Equal(t, http.StatusConflict, rw.Code)
	require.JSONEq(t, `{"success":false,"error":"conflict"}`, rw.Body.String())
}
