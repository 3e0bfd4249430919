package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowMethods = "GET,POST,PUT,PATCH,DELETE,OPTIONS"
	corsAllowHeaders = "Origin, Content-Type, Accept, Authorization"
	corsMaxAge       = "600"
)

// originPolicy decides which cross-origin callers may talk to the service.
type originPolicy struct {
	allowed     []string
	development bool
}

func newOriginPolicy(allowed []string, development bool) originPolicy {
	normalized := make([]string, 0, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			normalized = append(normalized, o)
		}
	}
	return originPolicy{allowed: normalized, development: development}
}

// check returns whether the request is cross-origin and, if so, whether
// its origin is allowed. Requests without Origin and same-origin requests
// are not cross-origin.
func (p originPolicy) check(r *http.Request) (crossOrigin, allowed bool) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false, true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return true, false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return false, true
	}
	if containsOrigin(p.allowed, origin) {
		return true, true
	}
	if p.development && isLocalhost(u.Hostname()) {
		return true, true
	}
	return true, false
}

func containsOrigin(allowed []string, origin string) bool {
	origin = strings.TrimSuffix(strings.ToLower(origin), "/")
	for _, candidate := range allowed {
		if candidate == origin {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func setCORSHeaders(c *gin.Context, origin string) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
}

func setSecurityHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
}
