package geoip

import "github.com/TomasB/ip2country/internal/data"

// Sentinel codes that carry no country.
const (
	// CodeParseFailure is what the lookup tool prints for
	// "IP Address not found".
	CodeParseFailure = "IP"
	// CodeNoDatabase marks a database miss or a version with no database.
	CodeNoDatabase = data.UnknownCountry
)

// Result is the outcome of a single resolution. An empty Name means no name
// is known for Code.
type Result struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// IsSentinel reports whether code is a placeholder rather than a country.
func IsSentinel(code string) bool {
	return code == CodeParseFailure || code == CodeNoDatabase
}

// Normalize applies the sentinel and default code policy to a raw backend
// answer. A substituted default carries no name.
func Normalize(code, name, defaultCode string) (Result, error) {
	if !IsSentinel(code) {
		return Result{Code: code, Name: name}, nil
	}
	if defaultCode == "" {
		return Result{}, ErrNoResolution
	}
	return Result{Code: defaultCode}, nil
}
