package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists profiles in a SQLite table keyed by client id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS client_profiles (
        client_id TEXT PRIMARY KEY,
        battery_kwh REAL NOT NULL,
        charging_kw REAL NOT NULL,
        departure_clock TEXT,
        updated_at INTEGER NOT NULL
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Put upserts p.
func (s *SQLiteStore) Put(ctx context.Context, p Profile) error {
	var updated int64
	if !p.UpdatedAt.IsZero() {
		updated = p.UpdatedAt.UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO client_profiles (client_id, battery_kwh, charging_kw, departure_clock, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ClientID, p.BatteryKWh, p.ChargingKW, p.DepartureClock, updated)
	return err
}

// Get loads the profile of clientID.
func (s *SQLiteStore) Get(ctx context.Context, clientID string) (Profile, error) {
	p := Profile{ClientID: clientID}
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT battery_kwh, charging_kw, departure_clock, updated_at FROM client_profiles WHERE client_id = ?`, clientID).
		Scan(&p.BatteryKWh, &p.ChargingKW, &p.DepartureClock, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if updated != 0 {
		p.UpdatedAt = time.Unix(0, updated).UTC()
	}
	return p, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
