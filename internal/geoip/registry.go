package geoip

import (
	"errors"
	"sync"

	"github.com/TomasB/ip2country/internal/data"
)

// Opener constructs a database handle from a file path.
type Opener func(path string) (data.CountryLookup, error)

// handleSlot holds the handle for one IP version. Opens for different
// versions never wait on each other.
type handleSlot struct {
	mu     sync.RWMutex
	handle data.CountryLookup
}

// handleRegistry owns at most one database handle per IP version. Handles
// are opened on first use and kept until closeAll. A failed open is not
// remembered, so the next caller tries again.
type handleRegistry struct {
	open  Opener
	slots map[Version]*handleSlot
}

func newHandleRegistry(open Opener) *handleRegistry {
	return &handleRegistry{
		open: open,
		slots: map[Version]*handleSlot{
			V4: {},
			V6: {},
		},
	}
}

func (r *handleRegistry) get(v Version, path string) (data.CountryLookup, error) {
	s := r.slots[v]

	s.mu.RLock()
	h := s.handle
	s.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return s.handle, nil
	}

	h, err := r.open(path)
	if err != nil {
		return nil, err
	}
	s.handle = h
	return h, nil
}

func (r *handleRegistry) closeAll() error {
	var errs []error
	for _, s := range r.slots {
		s.mu.Lock()
		if s.handle != nil {
			if err := s.handle.Close(); err != nil {
				errs = append(errs, err)
			}
			s.handle = nil
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}
