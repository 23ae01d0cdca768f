package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Storage keeps a log of visitor resolutions for analytics.
type Storage struct {
	db *sql.DB
}

// Lookup is one logged resolution. An empty Code records a failure.
type Lookup struct {
	ID        int64
	Timestamp time.Time
	Address   string
	Code      string
	Override  bool
}

type CountryCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

type Stats struct {
	TotalLookups    int `json:"total_lookups"`
	FailedLookups   int `json:"failed_lookups"`
	UniqueAddresses int `json:"unique_addresses"`
	UniqueCountries int `json:"unique_countries"`
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lookups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts INTEGER NOT NULL,
		address TEXT NOT NULL,
		code TEXT,
		override BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_lookups_ts ON lookups(ts);
	CREATE INDEX IF NOT EXISTS idx_lookups_code ON lookups(code);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) InsertLookup(l Lookup) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO lookups (ts, address, code, override) VALUES (?, ?, ?, ?)`,
		l.Timestamp.Unix(),
		l.Address,
		nullString(l.Code),
		l.Override,
	)
	return err
}

func (s *Storage) RecentLookups(since time.Time, limit int) ([]Lookup, error) {
	query := `
		SELECT id, ts, address, COALESCE(code, ''), override
		FROM lookups
		WHERE ts >= ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lookups []Lookup
	for rows.Next() {
		var l Lookup
		var ts int64
		if err := rows.Scan(&l.ID, &ts, &l.Address, &l.Code, &l.Override); err != nil {
			return nil, err
		}
		l.Timestamp = time.Unix(ts, 0)
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}

func (s *Storage) TopCountries(since time.Time, limit int) ([]CountryCount, error) {
	query := `
		SELECT code, COUNT(*) as count
		FROM lookups
		WHERE code IS NOT NULL AND ts >= ?
		GROUP BY code
		ORDER BY count DESC, code ASC
		LIMIT ?
	`

	rows, err := s.db.Query(query, since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CountryCount
	for rows.Next() {
		var cc CountryCount
		if err := rows.Scan(&cc.Code, &cc.Count); err != nil {
			return nil, err
		}
		results = append(results, cc)
	}
	return results, rows.Err()
}

func (s *Storage) GetStats(since time.Time) (*Stats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN code IS NULL THEN 1 END) as failed,
			COUNT(DISTINCT address) as unique_addresses,
			COUNT(DISTINCT code) as unique_countries
		FROM lookups
		WHERE ts >= ?
	`

	var stats Stats
	err := s.db.QueryRow(query, since.Unix()).Scan(
		&stats.TotalLookups, &stats.FailedLookups, &stats.UniqueAddresses, &stats.UniqueCountries,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Storage) Cleanup(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := s.db.Exec(`DELETE FROM lookups WHERE ts < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping() error {
	return s.db.Ping()
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
