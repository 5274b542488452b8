// Package kpi persists daily savings tallies in SQLite.
package kpi

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kilianp07/smartcharge/core/metrics/eco"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements eco.Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ eco.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database and ensures the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS savings_kpi (
        client_id TEXT,
        day INTEGER,
        requests INTEGER,
        energy REAL,
        cost REAL,
        emissions REAL,
        PRIMARY KEY(client_id, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Add upserts the day bucket of r's client.
func (s *SQLiteStore) Add(r eco.Record) error {
	_, err := s.db.Exec(`INSERT INTO savings_kpi (client_id, day, requests, energy, cost, emissions)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(client_id, day) DO UPDATE SET
            requests = requests + excluded.requests,
            energy = energy + excluded.energy,
            cost = cost + excluded.cost,
            emissions = emissions + excluded.emissions`,
		r.ClientID, eco.Day(r.Date).Unix(), r.Requests, r.EnergyKWh, r.CostSaved, r.EmissionsAvoided)
	return err
}

// Query returns records in the day range [start,end], oldest first.
func (s *SQLiteStore) Query(clientID string, start, end time.Time) ([]eco.Record, error) {
	rows, err := s.db.Query(`SELECT client_id, day, requests, energy, cost, emissions
        FROM savings_kpi WHERE client_id = ? AND day >= ? AND day <= ? ORDER BY day`,
		clientID, eco.Day(start).Unix(), eco.Day(end).Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []eco.Record
	for rows.Next() {
		var r eco.Record
		var ts int64
		if err := rows.Scan(&r.ClientID, &ts, &r.Requests, &r.EnergyKWh, &r.CostSaved, &r.EmissionsAvoided); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
