package upload

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a synced workout is not in the state db.
var ErrNotFound = errors.New("not found")

// SyncedWorkout is one workout pushed to the destination.
type SyncedWorkout struct {
	WorkoutID      string    `json:"workout_id"`
	Date           string    `json:"date"`
	Name           string    `json:"name"`
	DestinationKey string    `json:"destination_key"`
	DocumentHash   string    `json:"document_hash"`
	DocumentJSON   string    `json:"document_json,omitempty"`
	SyncedAt       time.Time `json:"synced_at"`
}

// DebugSnapshot is a raw source kept after a failed conversion.
type DebugSnapshot struct {
	ID        string
	Kind      string
	Filename  string
	Content   []byte
	Error     string
	CreatedAt time.Time
}

// StateDB tracks synced workouts so unchanged documents are not re-sent, and
// keeps raw sources of failed conversions for debugging.
type StateDB struct {
	db  *sql.DB
	dir string
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS synced_workouts (
			workout_id      TEXT PRIMARY KEY,
			date            TEXT NOT NULL,
			name            TEXT NOT NULL,
			destination_key TEXT NOT NULL,
			document_hash   TEXT NOT NULL,
			document_json   TEXT NOT NULL,
			synced_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS synced_workouts_date ON synced_workouts (date)`,
		`CREATE TABLE IF NOT EXISTS debug_snapshots (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			filename   TEXT NOT NULL,
			content    BLOB NOT NULL,
			error      TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating state tables: %w", err)
		}
	}

	return &StateDB{db: db, dir: dir}, nil
}

// IsSynced reports whether workoutID was last synced to key with the same
// document hash.
func (s *StateDB) IsSynced(ctx context.Context, workoutID, key, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM synced_workouts WHERE workout_id = ? AND destination_key = ? AND document_hash = ?`,
		workoutID, key, hash,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSynced records a successful sync.
func (s *StateDB) MarkSynced(ctx context.Context, w SyncedWorkout) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO synced_workouts
			(workout_id, date, name, destination_key, document_hash, document_json, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.WorkoutID, w.Date, w.Name, w.DestinationKey, w.DocumentHash, w.DocumentJSON, time.Now().UTC(),
	)
	return err
}

// ForgetDate drops synced rows for a date whose workout was removed.
func (s *StateDB) ForgetDate(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM synced_workouts WHERE date = ?`, date)
	return err
}

// ListSynced returns the most recently dated synced workouts, without their
// documents.
func (s *StateDB) ListSynced(ctx context.Context, limit int) ([]SyncedWorkout, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT workout_id, date, name, destination_key, document_hash, synced_at
		FROM synced_workouts ORDER BY date DESC, workout_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing synced workouts: %w", err)
	}
	defer rows.Close()

	var out []SyncedWorkout
	for rows.Next() {
		var w SyncedWorkout
		if err := rows.Scan(&w.WorkoutID, &w.Date, &w.Name, &w.DestinationKey, &w.DocumentHash, &w.SyncedAt); err != nil {
			return nil, fmt.Errorf("scanning synced workout: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetSynced returns one synced workout including its document.
func (s *StateDB) GetSynced(ctx context.Context, workoutID string) (*SyncedWorkout, error) {
	var w SyncedWorkout
	err := s.db.QueryRowContext(ctx,
		`SELECT workout_id, date, name, destination_key, document_hash, document_json, synced_at
		FROM synced_workouts WHERE workout_id = ?`, workoutID,
	).Scan(&w.WorkoutID, &w.Date, &w.Name, &w.DestinationKey, &w.DocumentHash, &w.DocumentJSON, &w.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting synced workout %s: %w", workoutID, err)
	}
	return &w, nil
}

// SaveSnapshot stores a failed source in the db and dumps it to
// dir/<filename> for inspection. It returns the snapshot id.
func (s *StateDB) SaveSnapshot(ctx context.Context, snap DebugSnapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO debug_snapshots (id, kind, filename, content, error, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Kind, snap.Filename, snap.Content, snap.Error, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("saving snapshot: %w", err)
	}
	if snap.Filename != "" {
		path := filepath.Join(s.dir, filepath.Base(snap.Filename))
		if err := os.WriteFile(path, snap.Content, 0o644); err != nil {
			return snap.ID, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return snap.ID, nil
}

// CountSynced returns how many workouts are tracked as synced.
func (s *StateDB) CountSynced(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM synced_workouts`).Scan(&n)
	return n, err
}

// CountSnapshots returns how many debug snapshots are stored.
func (s *StateDB) CountSnapshots(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM debug_snapshots`).Scan(&n)
	return n, err
}

// Dir returns the state directory.
func (s *StateDB) Dir() string {
	return s.dir
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashDocument computes the SHA-256 hash of a serialized document.
func HashDocument(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
