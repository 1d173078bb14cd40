package baseline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the durable baseline store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the baseline database at path. Use
// ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS baselines (
		player_id        TEXT PRIMARY KEY,
		role             TEXT NOT NULL,
		fatigue_limit    REAL NOT NULL,
		sleep_hours      REAL NOT NULL,
		recovery_minutes REAL NOT NULL,
		fit              INTEGER NOT NULL DEFAULT 1,
		updated_at       DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_baselines_role ON baselines(role);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Get retrieves a player's baseline.
func (s *SQLiteStore) Get(ctx context.Context, playerID string) (Baseline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT player_id, role, fatigue_limit, sleep_hours, recovery_minutes, fit, updated_at
		FROM baselines WHERE player_id = ?
	`, playerID)

	var b Baseline
	err := row.Scan(&b.PlayerID, &b.Role, &b.FatigueLimit, &b.SleepHours, &b.RecoveryMinutes, &b.Fit, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Baseline{}, ErrNotFound
	}
	if err != nil {
		return Baseline{}, fmt.Errorf("scan baseline: %w", err)
	}
	return b.Normalize(), nil
}

// Put upserts a player's baseline.
func (s *SQLiteStore) Put(ctx context.Context, b Baseline) error {
	b = b.Normalize()
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (player_id, role, fatigue_limit, sleep_hours, recovery_minutes, fit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			role = excluded.role,
			fatigue_limit = excluded.fatigue_limit,
			sleep_hours = excluded.sleep_hours,
			recovery_minutes = excluded.recovery_minutes,
			fit = excluded.fit,
			updated_at = excluded.updated_at
	`, b.PlayerID, b.Role, b.FatigueLimit, b.SleepHours, b.RecoveryMinutes, b.Fit, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert baseline: %w", err)
	}
	return nil
}

// List returns all stored baselines ordered by player id.
func (s *SQLiteStore) List(ctx context.Context) ([]Baseline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, role, fatigue_limit, sleep_hours, recovery_minutes, fit, updated_at
		FROM baselines ORDER BY player_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query baselines: %w", err)
	}
	defer rows.Close()

	var out []Baseline
	for rows.Next() {
		var b Baseline
		if err := rows.Scan(&b.PlayerID, &b.Role, &b.FatigueLimit, &b.SleepHours, &b.RecoveryMinutes, &b.Fit, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan baseline row: %w", err)
		}
		out = append(out, b.Normalize())
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
