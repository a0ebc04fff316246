// Package sqlite provides the SQLite-backed results ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"durak/internal/ports"
	"durak/internal/storage/sqlite/migrations"
)

// ErrDuplicateMatch is returned when a room's result was already recorded.
var ErrDuplicateMatch = ports.ErrDuplicateMatch

// Store persists finished matches in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ ports.ResultsPort = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite results store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var n int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&n); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if n > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("mark migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// RecordMatch inserts one finished match and a result row for every seat.
func (s *Store) RecordMatch(ctx context.Context, rec ports.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.RoomID) == "" {
		return fmt.Errorf("room id is required")
	}
	if len(rec.Players) == 0 {
		return fmt.Errorf("match %s has no players", rec.RoomID)
	}
	finishedAt := rec.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record match: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO matches (room_id, deck_size, stake, loser_id, draw, forfeit, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomID, rec.DeckSize, rec.Stake, rec.LoserID, rec.Draw, rec.Forfeit, toMillis(finishedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateMatch, rec.RoomID)
		}
		return fmt.Errorf("insert match: %w", err)
	}

	winners := make(map[string]bool, len(rec.Winners))
	for _, id := range rec.Winners {
		winners[id] = true
	}
	bots := make(map[string]bool, len(rec.Bots))
	for _, id := range rec.Bots {
		bots[id] = true
	}
	for seat, id := range rec.Players {
		result := "loss"
		switch {
		case rec.Draw:
			result = "draw"
		case winners[id]:
			result = "win"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_players (room_id, user_id, seat, is_bot, result) VALUES (?, ?, ?, ?, ?)`,
			rec.RoomID, id, seat, bots[id], result,
		); err != nil {
			return fmt.Errorf("insert match player %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record match: %w", err)
	}
	return nil
}

// PlayerStats aggregates the recorded results of userID. Unknown users have zero counters.
func (s *Store) PlayerStats(ctx context.Context, userID string) (ports.PlayerStats, error) {
	if err := ctx.Err(); err != nil {
		return ports.PlayerStats{}, err
	}
	if s == nil || s.sqlDB == nil {
		return ports.PlayerStats{}, fmt.Errorf("storage is not configured")
	}
	stats := ports.PlayerStats{UserID: userID}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT result, COUNT(1) FROM match_players WHERE user_id = ? GROUP BY result`, userID)
	if err != nil {
		return ports.PlayerStats{}, fmt.Errorf("query player stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			result string
			n      int
		)
		if err := rows.Scan(&result, &n); err != nil {
			return ports.PlayerStats{}, fmt.Errorf("scan player stats: %w", err)
		}
		switch result {
		case "win":
			stats.Wins = n
		case "loss":
			stats.Losses = n
		case "draw":
			stats.Draws = n
		}
	}
	if err := rows.Err(); err != nil {
		return ports.PlayerStats{}, fmt.Errorf("iterate player stats: %w", err)
	}
	return stats, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
