package data

import (
	"fmt"
	"time"

	"github.com/oschwald/maxminddb-golang"
)

// Metadata describes an MMDB file without keeping it open.
type Metadata struct {
	Path         string
	DatabaseType string
	IPVersion    uint
	NodeCount    uint
	BuildTime    time.Time
	Languages    []string
}

// ReadMetadata opens the MMDB file at path, reads its metadata section and
// closes it again.
func ReadMetadata(path string) (*Metadata, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MMDB file: %w", err)
	}
	defer db.Close()

	md := db.Metadata
	return &Metadata{
		Path:         path,
		DatabaseType: md.DatabaseType,
		IPVersion:    md.IPVersion,
		NodeCount:    md.NodeCount,
		BuildTime:    time.Unix(int64(md.BuildEpoch), 0).UTC(),
		Languages:    md.Languages,
	}, nil
}

// SupportsIPv6 reports whether the database was built with an IPv6 tree.
// IPv6 trees answer IPv4 queries too.
func (m *Metadata) SupportsIPv6() bool {
	return m.IPVersion == 6
}
