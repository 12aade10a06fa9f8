// Package sqlite persists geocoding results across runs in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
)

// Store manages the geocode_cache SQLite table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// geocode_cache table exists. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open geocode db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	const ddl = `CREATE TABLE IF NOT EXISTS geocode_cache (
		query        TEXT PRIMARY KEY,
		lat          REAL NOT NULL,
		lon          REAL NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		updated_at   INTEGER NOT NULL
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create geocode_cache table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get returns the stored result for query. ok is false when nothing is stored.
func (s *Store) Get(ctx context.Context, query string) (result domain.GeocodingResult, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT lat, lon, display_name FROM geocode_cache WHERE query = ?`,
		domain.QueryKey(query),
	).Scan(&result.Lat, &result.Lon, &result.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodingResult{}, false, nil
	}
	if err != nil {
		return domain.GeocodingResult{}, false, fmt.Errorf("get geocode %q: %w", query, err)
	}
	result.Found = true
	return result, true, nil
}

// Put stores a found result for query, replacing any previous one.
func (s *Store) Put(ctx context.Context, query string, result domain.GeocodingResult) error {
	if !result.Found {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (query, lat, lon, display_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			lat = excluded.lat,
			lon = excluded.lon,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		domain.QueryKey(query), result.Lat, result.Lon, result.DisplayName, domain.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("put geocode %q: %w", query, err)
	}
	return nil
}

// Count returns the number of stored queries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocode_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count geocodes: %w", err)
	}
	return n, nil
}

// UpdatedAt returns the unix time query was last stored, or 0.
func (s *Store) UpdatedAt(ctx context.Context, query string) (int64, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM geocode_cache WHERE query = ?`, domain.QueryKey(query),
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get updated_at %q: %w", query, err)
	}
	return ts, nil
}
