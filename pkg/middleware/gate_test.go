package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const allowedOrigin = "https://app.ledgerly.io"

// stubVerifier accepts "good", rejects "bad" and fails for anything else
func stubVerifier(calls *int) SessionVerifier {
	return SessionVerifierFunc(func(ctx context.Context, token string) (bool, error) {
		if calls != nil {
			*calls++
		}
		switch token {
		case "good":
			return true, nil
		case "bad":
			return false, nil
		default:
			return false, errors.New("verify endpoint unreachable")
		}
	})
}

func newGateEngine(cfg GateConfig, v SessionVerifier) *gin.Engine {
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{allowedOrigin}
	}
	g := gin.New()
	g.Use(NewGate(cfg, v).Handler())
	page := func(c *gin.Context) { c.String(http.StatusOK, "page:"+c.Request.URL.Path) }
	g.GET("/", page)
	g.GET("/login", page)
	g.GET("/register", page)
	g.GET("/account", page)
	g.GET("/static/app.js", page)
	g.GET("/api/account", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	g.POST("/api/auth/login", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	return g
}

func do(g *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestGate_PreflightAllowedOrigin(t *testing.T) {
	g := newGateEngine(GateConfig{}, stubVerifier(nil))
	req := httptest.NewRequest(http.MethodOptions, "/api/account", nil)
	req.Header.Set("Origin", allowedOrigin)
	req.Header.Set("Access-Control-Request-Method", "GET")

	rw := do(g, req)
	require.Equal(t, http.StatusNoContent, rw.Code)
	require.Empty(t, rw.Body.String())
	require.Equal(t, allowedOrigin, rw.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rw.Header().Get("Access-Control-Allow-Credentials"))
	require.Contains(t, rw.Header().Values("Vary"), "Origin")
}

func TestGate_DisallowedOriginOnAPI(t *testing.T) {
	g := newGateEngine(GateConfig{AllowedOrigins: []string{allowedOrigin, "https://admin.ledgerly.io"}}, stubVerifier(nil))
	before := testutil.ToFloat64(metrics.GateDecisions.WithLabelValues(actionReject))

	for _, method := range []string{http.MethodOptions, http.MethodGet} {
		req := httptest.NewRequest(method, "/api/account", nil)
		req.Header.Set("Origin", "https://evil.example")
		rw := do(g, req)

		require.Equal(t, http.StatusForbidden, rw.Code, method)
		require.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
		require.Contains(t, rw.Header().Values("Vary"), "Origin")
		var body struct {
			Success        bool     `json:"success"`
			Error          string   `json:"error"`
			AllowedOrigins []string `json:"allowedOrigins"`
		}
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &body))
		require.False(t, body.Success)
		require.Equal(t, "origin not allowed", body.Error)
		require.Equal(t, []string{allowedOrigin, "https://admin.ledgerly.io"}, body.AllowedOrigins)
	}
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.GateDecisions.WithLabelValues(actionReject))-before)
}

func TestGate_DisallowedOriginOnPageIsNotDecorated(t *testing.T) {
	g := newGateEngine(GateConfig{}, stubVerifier(nil))
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Origin", "https://evil.example")

	rw := do(g, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
}

func TestGate_LocalhostOnlyInDevelopment(t *testing.T) {
	for _, origin := range []string{"http://localhost:3000", "http://127.0.0.1:5173"} {
		dev := newGateEngine(GateConfig{Development: true}, stubVerifier(nil))
		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.Header.Set("Origin", origin)
		rw := do(dev, req)
		require.Equal(t, http.StatusOK, rw.Code, origin)
		require.Equal(t, origin, rw.Header().Get("Access-Control-Allow-Origin"))

		prod := newGateEngine(GateConfig{Development: false}, stubVerifier(nil))
		req = httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.Header.Set("Origin", origin)
		require.Equal(t, http.StatusForbidden, do(prod, req).Code, origin)
	}
}

func TestGate_SameOriginIsAllowed(t *testing.T) {
	g := newGateEngine(GateConfig{}, stubVerifier(nil))
	req := httptest.NewRequest(http.MethodPost, "http://ledgerly.local/api/auth/login", nil)
	req.Header.Set("Origin", "http://ledgerly.local")

	rw := do(g, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Header().Get("Access-Control-Allow-Origin"))
}

func TestGate_PublicPathsPassWithSecurityHeaders(t *testing.T) {
	calls := 0
	g := newGateEngine(GateConfig{}, stubVerifier(&calls))

	for _, path := range []string{"/", "/login", "/register", "/static/app.js"} {
		rw := do(g, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rw.Code, path)
		assert.Equal(t, "nosniff", rw.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rw.Header().Get("X-Frame-Options"))
		assert.Equal(t, "strict-origin-when-cross-origin", rw.Header().Get("Referrer-Policy"))
		assert.NotEmpty(t, rw.Header().Get("Permissions-Policy"))
	}
	require.Zero(t, calls, "public paths must not verify sessions")
}

func TestGate_APIPassesWithoutToken(t *testing.T) {
	calls := 0
	g := newGateEngine(GateConfig{}, stubVerifier(&calls))
	rw := do(g, httptest.NewRequest(http.MethodGet, "/api/account", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Zero(t, calls)
}

func TestGate_ProtectedPageWithoutToken(t *testing.T) {
	g := newGateEngine(GateConfig{}, stubVerifier(nil))
	rw := do(g, httptest.NewRequest(http.MethodGet, "/account", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rw.Code)
	require.Equal(t, "/login?returnUrl=%2Faccount", rw.Header().Get("Location"))
}

func TestGate_ProtectedPageWithRejectedToken(t *testing.T) {
	g := newGateEngine(GateConfig{}, stubVerifier(nil))
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "bad"})

	rw := do(g, req)
	require.Equal(t, http.StatusTemporaryRedirect, rw.Code)
	require.Equal(t, "/login?returnUrl=%2Faccount&expired=true", rw.Header().Get("Location"))
	cookie := rw.Header().Get("Set-Cookie")
	require.True(t, strings.HasPrefix(cookie, "token=;"), cookie)
	require.Contains(t, cookie, "Max-Age=0")
}

func TestGate_ProtectedPageWithValidToken(t *testing.T) {
	calls := 0
	g := newGateEngine(GateConfig{}, stubVerifier(&calls))

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("Authorization", "Bearer good")
	rw := do(g, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "page:/account", rw.Body.String())
	require.Equal(t, 1, calls)
}

func TestGate_VerifyFaultHonoursFailOpen(t *testing.T) {
	open := newGateEngine(GateConfig{FailOpen: true}, stubVerifier(nil))
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "unreachable"})
	rw := do(open, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Empty(t, rw.Header().Get("Set-Cookie"))

	closed := newGateEngine(GateConfig{FailOpen: false}, stubVerifier(nil))
	req = httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "unreachable"})
	rw = do(closed, req)
	require.Equal(t, http.StatusTemporaryRedirect, rw.Code)
	require.Equal(t, "/login?returnUrl=%2Faccount", rw.Header().Get("Location"))
}

func TestGate_VerifyTimeout(t *testing.T) {
	hang := SessionVerifierFunc(func(ctx context.Context, token string) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	})
	g := newGateEngine(GateConfig{FailOpen: true, VerifyTimeout: 50 * time.Millisecond}, hang)
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "good"})

	start := time.Now()
	rw := do(g, req)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestGate_SignedInVisitorLeavesAuthPages(t *testing.T) {
	g := newGateEngine(GateConfig{HomePath: "/dashboard"}, stubVerifier(nil))

	cases := map[string]string{
		"/login":                               "/dashboard",
		"/register":                            "/dashboard",
		"/login?returnUrl=%2Faccount%3Ftab%3D2": "/account?tab=2",
		"/login?returnUrl=https://evil.example": "/dashboard",
		"/login?returnUrl=//evil.example":       "/dashboard",
		"/login?returnUrl=%2Flogin":             "/dashboard",
	}
	for target, want := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "good"})
		rw := do(g, req)
		require.Equal(t, http.StatusTemporaryRedirect, rw.Code, target)
		require.Equal(t, want, rw.Header().Get("Location"), target)
	}

	// a stale session stays on the login page
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "bad"})
	require.Equal(t, http.StatusOK, do(g, req).Code)
}

func TestMatchPath(t *testing.T) {
	assert.True(t, matchPath("/api", "/api"))
	assert.True(t, matchPath("/api/auth/login", "/api"))
	assert.False(t, matchPath("/apiary", "/api"))
	assert.True(t, matchPath("/static/css/app.css", "/static/"))
	assert.False(t, matchPath("/loginx", "/login"))
}
