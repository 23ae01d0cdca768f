package data

// UnknownCountry is returned by a CountryLookup when the database has no
// country for an address.
const UnknownCountry = "--"

// CountryLookup defines the interface for IP-to-country lookups.
type CountryLookup interface {
	// LookupCountryCode returns the ISO-3166 country code for the given address,
	// or UnknownCountry when the database holds no record for it.
	// Returns an error if the address cannot be parsed or the lookup fails.
	LookupCountryCode(address string) (string, error)

	// Close releases any resources held by the lookup implementation.
	Close() error
}
