package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPublicPaths are reachable without a session. Entries ending in
// "/" match any path below them; others match exactly or as a path prefix.
var DefaultPublicPaths = []string{
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/static/",
	"/assets/",
	"/_next/",
	"/favicon.ico",
	"/robots.txt",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/logout",
	"/api/auth/verify",
	"/api/health",
	"/health",
	"/ready",
	"/metrics",
	"/swagger",
}

// DefaultAuthPages are public pages an already signed-in visitor is sent away from.
var DefaultAuthPages = []string{"/login", "/register"}

const (
	actionPass      = "pass"
	actionRedirect  = "redirect"
	actionReject    = "reject"
	actionPreflight = "preflight"
	actionFailOpen  = "fail_open"
)

// GateConfig configures the route gate.
type GateConfig struct {
	AllowedOrigins []string
	// Development additionally allows any localhost origin.
	Development    bool
	// FailOpen lets protected pages through when the session cannot be verified.
	FailOpen       bool
	VerifyTimeout  time.Duration
	LoginPath      string
	HomePath       string
	APIPrefix      string
	PublicPaths    []string
	AuthPages      []string
	CookieName     string
	CookieDomain   string
	CookieSecure   bool
}

// Gate is the edge middleware in front of every route. It applies the
// origin policy, short-circuits preflight and public paths, and sends
// visitors without a valid session to the login page. API routes pass
// through; their authorization belongs to Authorizer.
type Gate struct {
	cfg      GateConfig
	origins  originPolicy
	verifier SessionVerifier
	tracer   trace.Tracer
}

func NewGate(cfg GateConfig, v SessionVerifier) *Gate {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/dashboard"
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.PublicPaths == nil {
		cfg.PublicPaths = DefaultPublicPaths
	}
	if cfg.AuthPages == nil {
		cfg.AuthPages = DefaultAuthPages
	}
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 3 * time.Second
	}
	return &Gate{
		cfg:      cfg,
		origins:  newOriginPolicy(cfg.AllowedOrigins, cfg.Development),
		verifier: v,
		tracer:   otel.Tracer("ledgerly/gate"),
	}
}

// Handler returns the gin middleware.
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		path := r.URL.Path
		isAPI := matchPath(path, g.cfg.APIPrefix)

		c.Writer.Header().Add("Vary", "Origin")
		crossOrigin, allowed := g.origins.check(r)
		if crossOrigin {
			if allowed {
				setCORSHeaders(c, r.Header.Get("Origin"))
			} else if isAPI {
				g.reject(c)
				return
			}
		}

		if r.Method == http.MethodOptions {
			metrics.GateDecisions.WithLabelValues(actionPreflight).Inc()
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if g.isPublic(path) {
			if g.isAuthPage(path) {
				if target, ok := g.signedInTarget(c); ok {
					g.redirect(c, target)
					return
				}
			}
			g.pass(c, actionPass)
			return
		}

		if isAPI {
			g.pass(c, actionPass)
			return
		}

		tok, _ := auth.ExtractToken(r, g.cfg.CookieName, auth.DefaultQueryParam)
		if tok == "" {
			if path == g.cfg.LoginPath {
				g.pass(c, actionPass)
				return
			}
			g.redirect(c, g.loginURL(path, false))
			return
		}

		ok, err := g.verify(r.Context(), tok)
		switch {
		case err != nil && g.cfg.FailOpen:
			logger.Warnf("gate: session check failed for %s, letting request through: %v", path, err)
			g.pass(c, actionFailOpen)
		case err != nil:
			logger.Warnf("gate: session check failed for %s: %v", path, err)
			g.redirect(c, g.loginURL(path, false))
		case !ok:
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(g.cfg.CookieName, "", -1, "/", g.cfg.CookieDomain, g.cfg.CookieSecure, true)
			g.redirect(c, g.loginURL(path, true))
		default:
			g.pass(c, actionPass)
		}
	}
}

func (g *Gate) verify(ctx context.Context, tok string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.VerifyTimeout)
	defer cancel()
	ctx, span := g.tracer.Start(ctx, "gate.VerifySession")
	defer span.End()

	ok, err := g.verifier.Verify(ctx, tok)
	outcome := "accepted"
	switch {
	case err != nil:
		outcome = "error"
		span.RecordError(err)
	case !ok:
		outcome = "rejected"
	}
	span.SetAttributes(attribute.String("gate.verify_outcome", outcome))
	metrics.SessionVerifications.WithLabelValues(outcome).Inc()
	return ok, err
}

// signedInTarget reports where a visitor on an auth page should go when
// their session is already valid.
func (g *Gate) signedInTarget(c *gin.Context) (string, bool) {
	tok, _ := auth.ExtractToken(c.Request, g.cfg.CookieName, auth.DefaultQueryParam)
	if tok == "" {
		return "", false
	}
	ok, err := g.verify(c.Request.Context(), tok)
	if err != nil || !ok {
		return "", false
	}
	if ret := safeReturnURL(c.Query("returnUrl")); ret != "" && !g.isAuthPage(ret) {
		return ret, true
	}
	return g.cfg.HomePath, true
}

func (g *Gate) pass(c *gin.Context, action string) {
	setSecurityHeaders(c)
	metrics.GateDecisions.WithLabelValues(action).Inc()
	c.Next()
}

func (g *Gate) redirect(c *gin.Context, location string) {
	metrics.GateDecisions.WithLabelValues(actionRedirect).Inc()
	c.Redirect(http.StatusTemporaryRedirect, location)
	c.Abort()
}

func (g *Gate) reject(c *gin.Context) {
	metrics.GateDecisions.WithLabelValues(actionReject).Inc()
	c.AbortWithStatusJSON(auth.StatusCode(auth.ErrOriginRejected), gin.H{
		"success":        false,
		"error":          auth.ErrOriginRejected.Error(),
		"allowedOrigins": g.allowedOrigins(),
	})
}

func (g *Gate) allowedOrigins() []string {
	out := make([]string, len(g.cfg.AllowedOrigins))
	copy(out, g.cfg.AllowedOrigins)
	return out
}

func (g *Gate) loginURL(returnTo string, expired bool) string {
	u := g.cfg.LoginPath + "?returnUrl=" + url.QueryEscape(returnTo)
	if expired {
		u += "&expired=true"
	}
	return u
}

func (g *Gate) isPublic(path string) bool {
	if path == "/" {
		return true
	}
	for _, p := range g.cfg.PublicPaths {
		if matchPath(path, p) {
			return true
		}
	}
	return false
}

func (g *Gate) isAuthPage(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, p := range g.cfg.AuthPages {
		if matchPath(path, p) {
			return true
		}
	}
	return false
}

// matchPath reports whether path equals prefix or lies below it.
func matchPath(path, prefix string) bool {
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(path, prefix)
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// safeReturnURL accepts only local absolute paths.
func safeReturnURL(s string) string {
	if s == "" || !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/\\") {
		return ""
	}
	return s
}
