package geoip

import (
	"errors"
	"fmt"
)

var (
	// ErrDisabled is returned when resolution is switched off or the
	// process lookup is not permitted in this execution context.
	ErrDisabled = errors.New("geoip resolution disabled")

	// ErrUnavailable is returned when the selected backend produced no code.
	ErrUnavailable = errors.New("geoip backend unavailable")

	// ErrNoResolution is returned when no code was resolved and no default
	// country code is configured.
	ErrNoResolution = errors.New("no country resolved")

	// ErrMalformedOutput is returned for lookup output that does not carry a
	// two character code. It matches ErrUnavailable.
	ErrMalformedOutput = fmt.Errorf("%w: malformed lookup output", ErrUnavailable)
)
