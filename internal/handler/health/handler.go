package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Check is a named readiness probe. Fn returns nil when the dependency is
// usable.
type Check struct {
	Name string
	Fn   func() error
}

// Handler manages health check endpoints
type Handler struct {
	checks []Check
}

// NewHandler creates a new health check handler
func NewHandler(checks ...Check) *Handler {
	return &Handler{checks: checks}
}

// Health is the liveness probe endpoint
// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready is the readiness probe endpoint. The first failing check is
// reported.
// GET /ready
func (h *Handler) Ready(c *gin.Context) {
	for _, check := range h.checks {
		if check.Fn == nil {
			continue
		}
		if err := check.Fn(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"check":  check.Name,
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}
