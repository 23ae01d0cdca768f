package data

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// ErrInvalidAddress is returned when an address is not a parseable IP.
var ErrInvalidAddress = errors.New("invalid IP address")

// Synthetic codes for traffic the database flags instead of placing.
const (
	AnonymousProxyCode    = "A1"
	SatelliteProviderCode = "A2"
)

// MmdbReader implements CountryLookup using a MaxMind MMDB file.
type MmdbReader struct {
	db   *geoip2.Reader
	path string
}

// NewMmdbReader opens the MMDB file at the given path and returns a reader.
func NewMmdbReader(path string) (*MmdbReader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	return &MmdbReader{db: db, path: path}, nil
}

// OpenCountryLookup opens path as a CountryLookup.
func OpenCountryLookup(path string) (CountryLookup, error) {
	r, err := NewMmdbReader(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// LookupCountryCode returns the ISO-3166 country code for the given address.
func (r *MmdbReader) LookupCountryCode(address string) (string, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	record, err := r.db.Country(ip)
	if err != nil {
		return "", fmt.Errorf("country lookup failed: %w", err)
	}

	switch {
	case record.Traits.IsAnonymousProxy:
		return AnonymousProxyCode, nil
	case record.Traits.IsSatelliteProvider:
		return SatelliteProviderCode, nil
	case record.Country.IsoCode != "":
		return record.Country.IsoCode, nil
	case record.RegisteredCountry.IsoCode != "":
		return record.RegisteredCountry.IsoCode, nil
	}
	return UnknownCountry, nil
}

// Path returns the file the reader was opened from.
func (r *MmdbReader) Path() string {
	return r.path
}

// Close releases the MMDB reader resources.
func (r *MmdbReader) Close() error {
	return r.db.Close()
}
