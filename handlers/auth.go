package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/config"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/sessions"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/tokens"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/users"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/middleware"
)

// CredentialsRequest is the body of the login and register endpoints.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	codec       *tokens.Codec
	authn       *auth.Authenticator
	revocations *sessions.Service
}

// NewAuthHandler wires the auth endpoints. revocations may be nil, in which
// case logout only clears the cookie.
func NewAuthHandler(cfg *config.Config, u *users.Service, codec *tokens.Codec, authn *auth.Authenticator, revocations *sessions.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, codec: codec, authn: authn, revocations: revocations}
}

// Register routes under /auth. limit runs in front of the credential
// endpoints only.
func (h *AuthHandler) Register(rg *gin.RouterGroup, authz *middleware.Authorizer, limit ...gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", chain(limit, h.SignUp)...)
	a.POST("/login", chain(limit, h.Login)...)
	a.POST("/logout", h.Logout)
	a.GET("/me", authz.Wrap(h.Me, middleware.AnyRole))
	a.GET("/verify", authz.Wrap(h.Me, middleware.AnyRole))
}

// SignUp creates an account and starts a session for it.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username and password are required"})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidUsername), errors.Is(err, users.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		logger.Errorf("register %q: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "registration failed"})
		return
	}
	h.startSession(c, http.StatusCreated, u, "Registration successful")
}

// Login checks credentials and issues a session token as cookie and body field.
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "username and password are required"})
		return
	}
	u, err := h.usersSvc.VerifyCredentials(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	case errors.Is(err, users.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		logger.Errorf("login %q: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "login failed"})
		return
	}
	h.startSession(c, http.StatusOK, u, "Login successful")
}

// Logout clears the session cookie and revokes the presented token so it
// cannot be replayed for the rest of its lifetime. A missing or already
// invalid token is not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	tok, _ := h.authn.Token(c.Request)
	h.clearCookie(c)

	if tok != "" && h.revocations != nil {
		if claims, err := h.authn.Claims(tok); err == nil {
			issued := time.UnixMilli(claims.IssuedAt)
			if err := h.revocations.Revoke(c.Request.Context(), tok, claims.Subject, issued); err != nil {
				logger.Errorf("logout: revoke token for %s: %v", claims.Subject, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "logout could not be recorded"})
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me returns the session user attached by the authorizer.
func (h *AuthHandler) Me(c *gin.Context) {
	u, ok := auth.UserFromContext(c.Request.Context())
	if !ok {
		c.Error(errors.New("no session user on authorized request"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (h *AuthHandler) startSession(c *gin.Context, status int, u *models.User, msg string) {
	tok, err := h.codec.Issue(u.ID)
	if err != nil {
		logger.Errorf("issue token for %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not create session"})
		return
	}
	h.setCookie(c, tok)
	c.JSON(status, gin.H{"success": true, "message": msg, "user": u.Session(), "token": tok})
}

func (h *AuthHandler) setCookie(c *gin.Context, tok string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.authn.CookieName(), tok, int(h.authn.MaxAge().Seconds()), "/", h.cfg.Cookie.Domain, h.secureCookie(), true)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.authn.CookieName(), "", -1, "/", h.cfg.Cookie.Domain, h.secureCookie(), true)
}

func (h *AuthHandler) secureCookie() bool {
	return h.cfg.Cookie.Secure || h.cfg.IsProduction()
}

func chain(pre []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+1)
	out = append(out, pre...)
	return append(out, h)
}
