package stats

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/TomasB/ip2country/internal/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultDays  = 7
	topCountries = 10
)

// Store reads aggregated visitor resolutions.
type Store interface {
	GetStats(since time.Time) (*storage.Stats, error)
	TopCountries(since time.Time, limit int) ([]storage.CountryCount, error)
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Days         int                    `json:"days"`
	Stats        *storage.Stats         `json:"stats"`
	TopCountries []storage.CountryCount `json:"top_countries"`
}

// Handler serves lookup log analytics.
type Handler struct {
	store Store
	now   func() time.Time
}

// NewHandler creates a new stats handler backed by store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// Stats handles GET /api/v1/stats?days=N
func (h *Handler) Stats(c *gin.Context) {
	days := defaultDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	since := h.now().AddDate(0, 0, -days)

	st, err := h.store.GetStats(since)
	if err != nil {
		slog.Error("failed to read stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}

	top, err := h.store.TopCountries(since, topCountries)
	if err != nil {
		slog.Error("failed to read top countries", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
		return
	}
	if top == nil {
		top = []storage.CountryCount{}
	}

	c.JSON(http.StatusOK, StatsResponse{
		Days:         days,
		Stats:        st,
		TopCountries: top,
	})
}
