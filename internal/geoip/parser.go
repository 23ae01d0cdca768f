package geoip

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// ParseLookupLine extracts the country code and name from one line of
// lookup tool output, e.g.
//
//	GeoIP Country Edition: GB, United Kingdom
//	NZ
//
// The code starts two bytes after the first colon (or at 0 without one) and
// is always two bytes long. The name, if any, starts four bytes after the
// code. These fixed offsets mirror the geoiplookup output format.
func ParseLookupLine(line string) (code, name string, err error) {
	start := 0
	if i := strings.IndexByte(line, ':'); i >= 0 {
		start = i + 2
	}

	if len(line) < start+2 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedOutput, line)
	}
	code = line[start : start+2]

	if len(line) > start+4 {
		name = strings.TrimSpace(line[start+4:])
	}
	return code, name, nil
}

// firstLine returns the first line of out with trailing whitespace removed.
func firstLine(out []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", false
	}
	line := strings.TrimRight(scanner.Text(), " \t\r")
	if line == "" {
		return "", false
	}
	return line, true
}
