package handlers

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/config"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/sessions"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/tokens"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/users"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/middleware"
)

// Deps are the services the router is assembled from.
type Deps struct {
	Users       *users.Service
	Codec       *tokens.Codec
	Authn       *auth.Authenticator
	Revocations *sessions.Service
	// Verifier backs the route gate; nil selects in-process verification via Authn.
	Verifier middleware.SessionVerifier
	// RateLimit guards the credential endpoints when set. Those routes run
	// before authentication, so the limiter keys them by client IP.
	RateLimit gin.HandlerFunc
	Probes    map[string]Probe
	Metrics   http.Handler
}

// NewRouter builds the gin engine: gate in front of everything, then the
// public endpoints, the API and the page fallback.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog())

	verifier := d.Verifier
	if verifier == nil {
		verifier = middleware.NewLocalSessionVerifier(d.Authn)
	}
	gate := middleware.NewGate(middleware.GateConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
		FailOpen:       cfg.Gate.FailOpen,
		VerifyTimeout:  cfg.Gate.VerifyTimeout,
		LoginPath:      cfg.Gate.LoginPath,
		HomePath:       cfg.Gate.HomePath,
		CookieName:     d.Authn.CookieName(),
		CookieDomain:   cfg.Cookie.Domain,
		CookieSecure:   cfg.Cookie.Secure || cfg.IsProduction(),
	}, verifier)
	r.Use(gate.Handler())

	NewHealth(d.Probes).Register(r)
	RegisterSwagger(r)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	authz := middleware.NewAuthorizer(d.Authn, cfg.ExposeErrors())
	api := r.Group("/api")
	var limit []gin.HandlerFunc
	if d.RateLimit != nil {
		limit = append(limit, d.RateLimit)
	}
	NewAuthHandler(cfg, d.Users, d.Codec, d.Authn, d.Revocations).Register(api, authz, limit...)
	NewAccountHandler(d.Users).Register(api, authz)

	r.NoRoute(pageFallback(cfg.Server.FrontendURL))
	return r
}

// pageFallback proxies unmatched routes to the frontend when one is
// configured. API paths and the no-frontend case get a JSON 404.
func pageFallback(frontend string) gin.HandlerFunc {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	}
	if frontend == "" {
		return notFound
	}
	target, err := url.Parse(frontend)
	if err != nil || target.Scheme == "" || target.Host == "" {
		logger.Warnf("FRONTEND_URL %q is not an absolute URL; page routes will 404", frontend)
		return notFound
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warnf("frontend proxy %s: %v", r.URL.Path, err)
		w.WriteHeader(http.StatusBadGateway)
	}
	return func(c *gin.Context) {
		if p := c.Request.URL.Path; p == "/api" || strings.HasPrefix(p, "/api/") {
			notFound(c)
			return
		}
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}
