package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe checks one dependency. A nil error means ready.
type Probe func(ctx context.Context) error

// Health serves liveness and readiness endpoints.
type Health struct {
	started time.Time
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealth(probes map[string]Probe) *Health {
	return &Health{started: time.Now(), probes: probes, timeout: 2 * time.Second}
}

func (h *Health) Register(r gin.IRoutes) {
	r.GET("/health", h.Live)
	r.GET("/api/health", h.Live)
	r.GET("/ready", h.Ready)
}

func (h *Health) Live(c *gin.Context) {
	c.String(http.StatusOK, "healthy")
}

// Ready returns 200 only when every probe passes.
func (h *Health) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	ready := true
	deps := map[string]bool{}
	for name, probe := range h.probes {
		ok := probe(ctx) == nil
		deps[name] = ok
		ready = ready && ok
	}
	uptime := time.Since(h.started).Round(time.Second).String()
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}
