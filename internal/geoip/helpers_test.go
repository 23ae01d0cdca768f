package geoip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TomasB/ip2country/internal/data"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLookup implements data.CountryLookup for testing.
type mockLookup struct {
	codes  map[string]string
	err    error
	closed atomic.Bool
}

func (m *mockLookup) LookupCountryCode(address string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if code, ok := m.codes[address]; ok {
		return code, nil
	}
	return data.UnknownCountry, nil
}

func (m *mockLookup) Close() error {
	m.closed.Store(true)
	return nil
}

// countingOpener hands out one mockLookup per path and counts opens.
type countingOpener struct {
	mu      sync.Mutex
	opens   atomic.Int32
	delay   time.Duration
	err     error
	codes   map[string]string
	handles map[string]*mockLookup
}

func (o *countingOpener) open(path string) (data.CountryLookup, error) {
	o.opens.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if o.err != nil {
		return nil, o.err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handles == nil {
		o.handles = make(map[string]*mockLookup)
	}
	h := &mockLookup{codes: o.codes}
	o.handles[path] = h
	return h, nil
}

// mockRunner implements Runner for testing.
type mockRunner struct {
	out      string
	exitCode int
	err      error
	block    bool

	mu    sync.Mutex
	calls [][]string
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, -1, fmt.Errorf("signal: killed")
	}
	return []byte(m.out), m.exitCode, m.err
}

func (m *mockRunner) lastCall() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}
