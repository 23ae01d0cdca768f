// Package geoip resolves client IP addresses to ISO country codes, either
// from per-version MMDB databases or by running an external lookup command.
package geoip

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TomasB/ip2country/internal/countries"
	"github.com/TomasB/ip2country/internal/data"
)

// Settings configures an Engine. It is fixed for the lifetime of the engine.
type Settings struct {
	Enabled            bool
	DefaultCountryCode string

	// IPv4DatabasePath and IPv6DatabasePath select database mode when
	// either is set. Relative paths are resolved against BaseDir.
	IPv4DatabasePath string
	IPv6DatabasePath string
	BaseDir          string

	// LookupCommand is the program and leading arguments run when no
	// database is configured. The address is appended as the last argument.
	LookupCommand      []string
	LookupTimeout      time.Duration
	ProcessExecAllowed bool
}

// Visitor identifies the caller whose country is wanted. Override, when
// set, is returned as is; the caller decides when overrides are allowed.
type Visitor struct {
	Address  string
	Override string
}

// Option customises an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	open   Opener
	runner Runner
}

// WithLogger sets the logger used for per-lookup diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithOpener replaces the database handle constructor.
func WithOpener(open Opener) Option {
	return func(o *engineOptions) { o.open = open }
}

// WithRunner replaces the command runner used by the process backend.
func WithRunner(runner Runner) Option {
	return func(o *engineOptions) { o.runner = runner }
}

// Engine picks a backend per call, normalizes its answer and optionally
// attaches the country name. It is safe for concurrent use.
type Engine struct {
	settings Settings
	db       *DatabaseAdapter
	process  *ProcessAdapter
	logger   *slog.Logger
}

// New creates an Engine for settings.
func New(settings Settings, opts ...Option) *Engine {
	o := engineOptions{
		logger: slog.Default(),
		open:   data.OpenCountryLookup,
		runner: ExecRunner{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Engine{
		settings: settings,
		db:       NewDatabaseAdapter(settings.BaseDir, settings.IPv4DatabasePath, settings.IPv6DatabasePath, o.open),
		process:  NewProcessAdapter(settings.LookupCommand, settings.LookupTimeout, settings.ProcessExecAllowed, o.runner, o.logger),
		logger:   o.logger,
	}
}

// Resolve returns the country for address. With codeOnly the result carries
// no name. Failures are ErrDisabled, ErrUnavailable (process backend only)
// and ErrNoResolution.
func (e *Engine) Resolve(ctx context.Context, address string, codeOnly bool) (*Result, error) {
	if !e.settings.Enabled {
		return nil, ErrDisabled
	}

	var code, name string
	if e.db.Enabled() {
		v := ClassifyAddress(address)
		c, err := e.db.Lookup(v, address)
		if err != nil {
			e.logger.Debug("database lookup unavailable", "address", address, "version", v.String(), "error", err)
			c = CodeNoDatabase
		}
		code = c
	} else {
		c, n, err := e.process.Lookup(ctx, address)
		if err != nil {
			e.logger.Debug("lookup command failed", "address", address, "error", err)
			return nil, err
		}
		code, name = c, n
	}

	res, err := Normalize(code, name, e.settings.DefaultCountryCode)
	if err != nil {
		return nil, err
	}

	if codeOnly {
		return &Result{Code: res.Code}, nil
	}
	if res.Name == "" {
		res.Name, _ = countries.NameFor(res.Code)
	}
	return &res, nil
}

// ResolveVisitorCountry returns the country code for a visitor: the
// override if present, else the resolved code, else the default code.
func (e *Engine) ResolveVisitorCountry(ctx context.Context, v Visitor) (string, error) {
	if v.Override != "" {
		return v.Override, nil
	}

	if v.Address != "" && e.settings.Enabled {
		res, err := e.Resolve(ctx, v.Address, true)
		if err == nil {
			return res.Code, nil
		}
		if !errors.Is(err, ErrNoResolution) {
			e.logger.Debug("visitor resolution failed", "address", v.Address, "error", err)
		}
	}

	if e.settings.DefaultCountryCode != "" {
		return e.settings.DefaultCountryCode, nil
	}
	return "", ErrNoResolution
}

// Settings returns a copy of the engine configuration.
func (e *Engine) Settings() Settings {
	s := e.settings
	s.LookupCommand = append([]string(nil), e.settings.LookupCommand...)
	return s
}

// Enabled reports whether resolution is switched on.
func (e *Engine) Enabled() bool {
	return e.settings.Enabled
}

// DefaultCountryCode returns the fallback code, or "" when none is set.
func (e *Engine) DefaultCountryCode() string {
	return e.settings.DefaultCountryCode
}

// DatabaseModeEnabled reports whether any database path is configured.
func (e *Engine) DatabaseModeEnabled() bool {
	return e.db.Enabled()
}

// DatabasePath returns the resolved database path for v, if configured.
func (e *Engine) DatabasePath(v Version) (string, bool) {
	return e.db.Path(v)
}

// Close releases the database handles. The engine must not be used after.
func (e *Engine) Close() error {
	return e.db.Close()
}
