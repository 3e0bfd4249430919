package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/auth"
	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/metrics"
)

// AnyRole passed to Wrap admits every authenticated user.
//
//	authz.Wrap(h, middleware.AnyRole)
const AnyRole = "*"

var errNoResponse = errors.New("handler produced no response")

// Authenticator is the minimal interface the authorizer depends on
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*models.SessionUser, error)
}

// Authorizer wraps handlers that require a session and a role.
type Authorizer struct {
	authn        Authenticator
	exposeErrors bool
}

// NewAuthorizer returns an Authorizer. exposeErrors adds handler error
// detail to 500 responses and must stay false in production.
func NewAuthorizer(a Authenticator, exposeErrors bool) *Authorizer {
	return &Authorizer{authn: a, exposeErrors: exposeErrors}
}

// Wrap returns h guarded by authentication and a role check. With no roles
// the user role is required; AnyRole among roles accepts any signed-in user.
// The wrapped handler always produces exactly one response.
func (z *Authorizer) Wrap(h gin.HandlerFunc, roles ...string) gin.HandlerFunc {
	required := append([]string(nil), roles...)
	if len(required) == 0 {
		required = []string{models.RoleUser}
	}
	for _, r := range required {
		if r == AnyRole {
			required = nil
			break
		}
	}
	return func(c *gin.Context) {
		u, err := z.authn.Authenticate(c.Request.Context(), c.Request)
		if err != nil {
			metrics.AuthResults.WithLabelValues(auth.Code(err)).Inc()
			if !auth.IsRejection(err) {
				logger.Errorf("authorize %s %s: %v", c.Request.Method, c.FullPath(), err)
			}
			c.AbortWithStatusJSON(auth.StatusCode(err), z.errorBody(err))
			return
		}
		if len(required) > 0 && !u.HasRole(required...) {
			metrics.AuthResults.WithLabelValues(auth.Code(auth.ErrForbidden)).Inc()
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": auth.ErrForbidden.Error()})
			return
		}
		metrics.AuthResults.WithLabelValues(auth.Code(nil)).Inc()

		c.Set(auth.ContextKey, u)
		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), u))
		z.invoke(c, h)
	}
}

func (z *Authorizer) invoke(c *gin.Context, h gin.HandlerFunc) {
	tw := &statusTracker{ResponseWriter: c.Writer}
	c.Writer = tw
	defer func() {
		c.Writer = tw.ResponseWriter
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			z.fail(c, fmt.Errorf("panic: %v", rec))
			return
		}
		if tw.headerSet || responded(c) {
			return
		}
		if last := c.Errors.Last(); last != nil {
			z.fail(c, last.Err)
			return
		}
		z.fail(c, errNoResponse)
	}()
	h(c)
}

func (z *Authorizer) fail(c *gin.Context, err error) {
	logger.Errorf("handler %s %s: %v", c.Request.Method, c.FullPath(), err)
	if c.Writer.Written() {
		// headers already sent; nothing more can be reported
		c.Abort()
		return
	}
	body := gin.H{"success": false, "error": "internal server error"}
	if z.exposeErrors {
		body["details"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

func (z *Authorizer) errorBody(err error) gin.H {
	body := gin.H{"success": false, "error": auth.Message(err), "code": auth.Code(err)}
	if z.exposeErrors && !auth.IsRejection(err) {
		body["details"] = err.Error()
	}
	return body
}

// statusTracker notes an explicit WriteHeader so that a bare c.Status(200)
// counts as a response.
type statusTracker struct {
	gin.ResponseWriter
	headerSet bool
}

func (w *statusTracker) WriteHeader(code int) {
	w.headerSet = true
	w.ResponseWriter.WriteHeader(code)
}

// responded reports whether the handler wrote or committed a response.
func responded(c *gin.Context) bool {
	return c.Writer.Written() || c.Writer.Status() != http.StatusOK || c.IsAborted()
}
