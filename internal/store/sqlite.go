package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded store backend, used when the crawler and assistant
// run on a single machine without a database server.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
// Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc's driver is not safe for concurrent writes on one connection
	// against the same file; a single conn also keeps :memory: coherent.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			match_id    TEXT PRIMARY KEY,
			patch       TEXT NOT NULL,
			blue_champs TEXT NOT NULL,
			red_champs  TEXT NOT NULL,
			winner      TEXT NOT NULL,
			game_start  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_game_start ON matches(game_start);

		CREATE TABLE IF NOT EXISTS subjects (
			puuid      TEXT PRIMARY KEY,
			last_fetch INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_subjects_last_fetch ON subjects(last_fetch);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Insert(ctx context.Context, rec MatchRecord) error {
	blue, err := json.Marshal(rec.BlueChamps)
	if err != nil {
		return err
	}
	red, err := json.Marshal(rec.RedChamps)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches (match_id, patch, blue_champs, red_champs, winner, game_start)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.MatchID, rec.Patch, string(blue), string(red), string(rec.Winner), rec.GameStart)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", rec.MatchID, err)
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, matchID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = ?)`, matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check match %s: %w", matchID, err)
	}
	return exists, nil
}

func (s *SQLite) Find(ctx context.Context, f Filter) ([]MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT match_id, patch, blue_champs, red_champs, winner, game_start
		FROM matches
		WHERE (? = '' OR patch = ?) AND game_start >= ?
		ORDER BY game_start
	`, f.Patch, f.Patch, f.Since)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		var blue, red, winner string
		if err := rows.Scan(&rec.MatchID, &rec.Patch, &blue, &red, &winner, &rec.GameStart); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blue), &rec.BlueChamps); err != nil {
			return nil, fmt.Errorf("decode blue champs for %s: %w", rec.MatchID, err)
		}
		if err := json.Unmarshal([]byte(red), &rec.RedChamps); err != nil {
			return nil, fmt.Errorf("decode red champs for %s: %w", rec.MatchID, err)
		}
		rec.Winner = Side(winner)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) EnsureSubject(ctx context.Context, puuid string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subjects (puuid, last_fetch) VALUES (?, 0)`, puuid)
	if err != nil {
		return fmt.Errorf("ensure subject: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, puuid string) (Checkpoint, bool, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT puuid, last_fetch FROM subjects WHERE puuid = ?`, puuid).
		Scan(&cp.PUUID, &cp.LastFetch)
	if err == sql.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, true, nil
}

func (s *SQLite) Upsert(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subjects (puuid, last_fetch) VALUES (?, ?)
		ON CONFLICT(puuid) DO UPDATE SET last_fetch = excluded.last_fetch
	`, cp.PUUID, cp.LastFetch)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, puuid string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE puuid = ?`, puuid)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite) Oldest(ctx context.Context) (Checkpoint, error) {
	var cp Checkpoint
	err := s.db.QueryRowContext(ctx,
		`SELECT puuid, last_fetch FROM subjects ORDER BY last_fetch, puuid LIMIT 1`).
		Scan(&cp.PUUID, &cp.LastFetch)
	if err == sql.ErrNoRows {
		return Checkpoint{}, ErrNoSubjects
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("oldest checkpoint: %w", err)
	}
	return cp, nil
}
