package check

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/TomasB/ip2country/internal/geoip"
	"github.com/gin-gonic/gin"
)

// CheckRequest represents the JSON body for a country check.
type CheckRequest struct {
	IP               string   `json:"ip" binding:"required"`
	AllowedCountries []string `json:"allowed_countries" binding:"required,min=1"`
}

// CheckResponse represents the JSON response for a country check.
type CheckResponse struct {
	Allowed bool   `json:"allowed"`
	Country string `json:"country"`
	Error   string `json:"error"`
}

// Resolver resolves an address to a country.
type Resolver interface {
	Resolve(ctx context.Context, address string, codeOnly bool) (*geoip.Result, error)
}

// Handler manages country allow-list check endpoints.
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new check handler with the given Resolver.
func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Check handles POST /api/v1/check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid request: " + err.Error(),
		})
		return
	}

	slog.Debug("check request received", "ip", req.IP, "allowed_countries", req.AllowedCountries)

	if net.ParseIP(req.IP) == nil {
		c.JSON(http.StatusBadRequest, CheckResponse{
			Error: "invalid IP address",
		})
		return
	}

	res, err := h.resolver.Resolve(c.Request.Context(), req.IP, true)
	if errors.Is(err, geoip.ErrNoResolution) {
		slog.Debug("no country for address", "ip", req.IP)
		c.JSON(http.StatusOK, CheckResponse{Allowed: false})
		return
	}
	if err != nil {
		if errors.Is(err, geoip.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, CheckResponse{
				Error: "geoip disabled",
			})
			return
		}
		slog.Error("country lookup failed", "ip", req.IP, "error", err)
		c.JSON(http.StatusInternalServerError, CheckResponse{
			Error: "lookup failed",
		})
		return
	}

	allowed := false
	for _, ac := range req.AllowedCountries {
		if ac == res.Code {
			allowed = true
			break
		}
	}

	c.JSON(http.StatusOK, CheckResponse{
		Allowed: allowed,
		Country: res.Code,
	})
}
