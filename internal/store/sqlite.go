package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps one row per player. modernc.org/sqlite is pure Go, so the
// server stays cgo-free.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens or creates the player database at the given path.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying pragma: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{conn: conn, path: dbPath}, nil
}

// Load fetches the record for the player, reporting false when none exists.
func (s *SQLiteStore) Load(playerID string) (Record, bool, error) {
	var payload string
	err := s.conn.QueryRow("SELECT payload FROM players WHERE player_id = ?", playerID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("loading player %s: %w", playerID, err)
	}
	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return Record{}, false, fmt.Errorf("decoding player %s: %w", playerID, err)
	}
	record.PlayerID = playerID
	return record, true, nil
}

// Save upserts the record.
func (s *SQLiteStore) Save(record Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding player %s: %w", record.PlayerID, err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO players (player_id, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		record.PlayerID, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving player %s: %w", record.PlayerID, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
