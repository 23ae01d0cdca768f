package geoip

import "strings"

// Version is the IP version an address is routed by.
type Version int

const (
	V4 Version = 4
	V6 Version = 6
)

func (v Version) String() string {
	if v == V6 {
		return "IPv6"
	}
	return "IPv4"
}

// ClassifyAddress returns V6 when address contains a colon and V4 otherwise.
// The address is not validated; malformed input is left to the backend.
func ClassifyAddress(address string) Version {
	if strings.Contains(address, ":") {
		return V6
	}
	return V4
}
