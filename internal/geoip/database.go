package geoip

import (
	"fmt"
	"path/filepath"
)

// DatabaseAdapter resolves addresses against one database file per IP
// version.
type DatabaseAdapter struct {
	paths    map[Version]string
	registry *handleRegistry
}

// NewDatabaseAdapter builds an adapter for the given database paths.
// Relative paths are resolved against baseDir. An empty path leaves that
// version without a database.
func NewDatabaseAdapter(baseDir, ipv4Path, ipv6Path string, open Opener) *DatabaseAdapter {
	paths := make(map[Version]string, 2)
	if ipv4Path != "" {
		paths[V4] = resolvePath(baseDir, ipv4Path)
	}
	if ipv6Path != "" {
		paths[V6] = resolvePath(baseDir, ipv6Path)
	}
	return &DatabaseAdapter{
		paths:    paths,
		registry: newHandleRegistry(open),
	}
}

// Enabled reports whether any version has a database configured.
func (a *DatabaseAdapter) Enabled() bool {
	return len(a.paths) > 0
}

// Path returns the resolved database path for v.
func (a *DatabaseAdapter) Path(v Version) (string, bool) {
	p, ok := a.paths[v]
	return p, ok
}

// Lookup returns the raw country code for address from the v database.
func (a *DatabaseAdapter) Lookup(v Version, address string) (string, error) {
	path, ok := a.paths[v]
	if !ok {
		return "", fmt.Errorf("%w: no %s database configured", ErrUnavailable, v)
	}

	h, err := a.registry.get(v, path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	code, err := h.LookupCountryCode(address)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return code, nil
}

// Close releases every opened handle.
func (a *DatabaseAdapter) Close() error {
	return a.registry.closeAll()
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}
