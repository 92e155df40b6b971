package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// PingContext calls f
func (f PingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

// SystemHandler serves liveness, readiness and build information
type SystemHandler struct {
	BaseHandler
	version   string
	db        Pinger
	startedAt time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(version string, db Pinger) *SystemHandler {
	return &SystemHandler{version: version, db: db, startedAt: time.Now()}
}

// Health is the liveness probe
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Ready reports whether the database answers
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "database": "ok"})
}

// SystemInfo is the payload of GET /api/v1/system/info
type SystemInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Info returns build and runtime information
func (h *SystemHandler) Info(c *gin.Context) {
	h.Success(c, SystemInfo{
		Name:      "crosslist",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startedAt).Truncate(time.Second).String(),
	})
}
