// Package countries maps ISO-3166 alpha-2 codes to display names.
//
// The table also carries the GeoIP regional codes (EU, AP) and three
// synthetic codes: A1 anonymous proxy, A2 satellite provider and A3
// internal network.
package countries

import (
	"bufio"
	_ "embed"
	"sort"
	"strings"
)

//go:embed iso3166.txt
var iso3166Data string

// Synthetic codes that do not name a country.
const (
	AnonymousProxy    = "A1"
	SatelliteProvider = "A2"
	InternalNetwork   = "A3"
)

// Country is one row of the code table.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var codeToName = parse(iso3166Data)

func parse(data string) map[string]string {
	table := make(map[string]string, 256)

	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, name, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		table[strings.TrimSpace(code)] = strings.TrimSpace(name)
	}
	return table
}

// NameFor returns the display name for code. Lookups are case-sensitive;
// codes are upper case.
func NameFor(code string) (string, bool) {
	name, ok := codeToName[code]
	return name, ok
}

// DropdownList returns every real country and region sorted by name,
// without the synthetic codes. The slice is freshly allocated.
func DropdownList() []Country {
	list := make([]Country, 0, len(codeToName))
	for code, name := range codeToName {
		switch code {
		case AnonymousProxy, SatelliteProvider, InternalNetwork:
			continue
		}
		list = append(list, Country{Code: code, Name: name})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].Code < list[j].Code
	})
	return list
}

// Len returns the number of entries in the table, synthetic codes included.
func Len() int {
	return len(codeToName)
}
