package country

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/TomasB/ip2country/internal/countries"
	"github.com/TomasB/ip2country/internal/geoip"
	"github.com/TomasB/ip2country/internal/storage"
	"github.com/gin-gonic/gin"
)

// devHostPattern matches hosts that may force a visitor country with
// ?country=XX.
var devHostPattern = regexp.MustCompile(`^dev(\.|$)`)

// Engine is the resolution API the handlers use.
type Engine interface {
	Resolve(ctx context.Context, address string, codeOnly bool) (*geoip.Result, error)
	ResolveVisitorCountry(ctx context.Context, v geoip.Visitor) (string, error)
}

// Recorder stores visitor resolutions.
type Recorder interface {
	InsertLookup(l storage.Lookup) error
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// VisitorResponse is the body of GET /api/v1/visitor.
type VisitorResponse struct {
	Code string `json:"code"`
}

// Handler serves country resolution endpoints.
type Handler struct {
	engine   Engine
	recorder Recorder
}

// NewHandler creates a handler. recorder may be nil.
func NewHandler(engine Engine, recorder Recorder) *Handler {
	return &Handler{engine: engine, recorder: recorder}
}

// Register mounts the handlers on group.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/country", h.Country)
	group.GET("/visitor", h.Visitor)
	group.GET("/countries", h.Countries)
	group.GET("/countries/:code", h.CountryName)
}

// Country handles GET /api/v1/country?ip=...&code_only=true
func (h *Handler) Country(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "ip is required"})
		return
	}

	codeOnly, _ := strconv.ParseBool(c.Query("code_only"))

	res, err := h.engine.Resolve(c.Request.Context(), ip, codeOnly)
	if err != nil {
		writeError(c, ip, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Visitor handles GET /api/v1/visitor and resolves the caller's own address.
func (h *Handler) Visitor(c *gin.Context) {
	v := geoip.Visitor{Address: c.ClientIP()}
	if isDevHost(c.Request.Host) {
		v.Override = strings.ToUpper(c.Query("country"))
	}

	code, err := h.engine.ResolveVisitorCountry(c.Request.Context(), v)
	h.record(v, code)
	if err != nil {
		writeError(c, v.Address, err)
		return
	}
	c.JSON(http.StatusOK, VisitorResponse{Code: code})
}

// Countries handles GET /api/v1/countries
func (h *Handler) Countries(c *gin.Context) {
	c.JSON(http.StatusOK, countries.DropdownList())
}

// CountryName handles GET /api/v1/countries/:code
func (h *Handler) CountryName(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	name, ok := countries.NameFor(code)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown country code"})
		return
	}
	c.JSON(http.StatusOK, countries.Country{Code: code, Name: name})
}

func (h *Handler) record(v geoip.Visitor, code string) {
	if h.recorder == nil {
		return
	}
	l := storage.Lookup{Address: v.Address, Code: code, Override: v.Override != ""}
	if err := h.recorder.InsertLookup(l); err != nil {
		slog.Error("failed to record lookup", "ip", v.Address, "error", err)
	}
}

func writeError(c *gin.Context, ip string, err error) {
	switch {
	case errors.Is(err, geoip.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "geoip disabled"})
	case errors.Is(err, geoip.ErrNoResolution):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "country not resolved"})
	default:
		slog.Error("country lookup failed", "ip", ip, "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "lookup failed"})
	}
}

func isDevHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return devHostPattern.MatchString(host)
}
