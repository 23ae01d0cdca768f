// Package selfcheck runs the resolution engine against a fixed set of well
// known hosts and reports where the answers differ from what is expected.
package selfcheck

import (
	"context"
	"log/slog"

	"github.com/TomasB/ip2country/internal/geoip"
)

// Resolver is the part of the engine the check exercises.
type Resolver interface {
	Resolve(ctx context.Context, address string, codeOnly bool) (*geoip.Result, error)
}

// Expectation pairs a host with its expected result. A nil Want expects
// resolution to fail.
type Expectation struct {
	Host string
	Want *geoip.Result
}

// DefaultChecks are hosts whose country is stable enough to check against.
var DefaultChecks = []Expectation{
	{Host: "www.paradise.net.nz", Want: &geoip.Result{Code: "NZ", Name: "New Zealand"}},
	{Host: "news.com.au", Want: &geoip.Result{Code: "AU", Name: "Australia"}},
	{Host: "www.google.com", Want: &geoip.Result{Code: "US", Name: "United States"}},
	{Host: "a.b.c.d.e.f.g", Want: nil},
}

// Outcome is the result of one check.
type Outcome struct {
	Host    string
	Address string
	Want    *geoip.Result
	Got     *geoip.Result
	Err     error
	Passed  bool
}

type Checker struct {
	resolver Resolver
	hosts    HostResolver
	checks   []Expectation
	logger   *slog.Logger
}

// NewChecker creates a Checker. With no checks, DefaultChecks are used.
func NewChecker(resolver Resolver, hosts HostResolver, logger *slog.Logger, checks ...Expectation) *Checker {
	if len(checks) == 0 {
		checks = DefaultChecks
	}
	return &Checker{
		resolver: resolver,
		hosts:    hosts,
		checks:   checks,
		logger:   logger,
	}
}

// Run executes every check and reports whether all of them passed.
// Mismatches are logged at warn level.
func (c *Checker) Run(ctx context.Context) (bool, []Outcome) {
	ok := true
	outcomes := make([]Outcome, 0, len(c.checks))

	for _, check := range c.checks {
		out := c.run(ctx, check)
		if !out.Passed {
			ok = false
		}
		outcomes = append(outcomes, out)
	}
	return ok, outcomes
}

func (c *Checker) run(ctx context.Context, check Expectation) Outcome {
	out := Outcome{Host: check.Host, Address: check.Host, Want: check.Want}

	// Unresolvable hosts are passed through; the lookup tool resolves
	// names itself and a database lookup simply misses.
	if addr, err := c.hosts.LookupA(ctx, check.Host); err == nil {
		out.Address = addr
	} else {
		c.logger.Debug("self-check host lookup failed", "host", check.Host, "error", err)
	}

	out.Got, out.Err = c.resolver.Resolve(ctx, out.Address, false)

	switch {
	case check.Want == nil:
		out.Passed = out.Err != nil
		if !out.Passed {
			c.logger.Warn("geoip self-check failed: expected failure",
				"host", check.Host, "got_code", out.Got.Code, "got_name", out.Got.Name)
		}
	case out.Err != nil:
		c.logger.Warn("geoip self-check failed: resolution returned no result",
			"host", check.Host, "want_code", check.Want.Code, "error", out.Err)
	case *out.Got != *check.Want:
		c.logger.Warn("geoip self-check failed: unexpected result",
			"host", check.Host,
			"got_code", out.Got.Code, "got_name", out.Got.Name,
			"want_code", check.Want.Code, "want_name", check.Want.Name)
	default:
		out.Passed = true
	}
	return out
}
