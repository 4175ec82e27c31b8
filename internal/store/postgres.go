package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the server store backend, for crawlers feeding a shared
// training database.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at url and ensures the schema.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS matches (
			match_id    TEXT PRIMARY KEY,
			patch       TEXT NOT NULL,
			blue_champs JSONB NOT NULL,
			red_champs  JSONB NOT NULL,
			winner      TEXT NOT NULL,
			game_start  BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_matches_game_start ON matches(game_start);

		CREATE TABLE IF NOT EXISTS subjects (
			puuid      TEXT PRIMARY KEY,
			last_fetch BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_subjects_last_fetch ON subjects(last_fetch);
	`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Insert(ctx context.Context, rec MatchRecord) error {
	blue, err := json.Marshal(rec.BlueChamps)
	if err != nil {
		return err
	}
	red, err := json.Marshal(rec.RedChamps)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO matches (match_id, patch, blue_champs, red_champs, winner, game_start)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO NOTHING
	`, rec.MatchID, rec.Patch, blue, red, string(rec.Winner), rec.GameStart)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", rec.MatchID, err)
	}
	return nil
}

func (p *Postgres) Exists(ctx context.Context, matchID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = $1)`, matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check match %s: %w", matchID, err)
	}
	return exists, nil
}

func (p *Postgres) Find(ctx context.Context, f Filter) ([]MatchRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT match_id, patch, blue_champs, red_champs, winner, game_start
		FROM matches
		WHERE ($1 = '' OR patch = $1) AND game_start >= $2
		ORDER BY game_start
	`, f.Patch, f.Since)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var out []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		var blue, red []byte
		var winner string
		if err := rows.Scan(&rec.MatchID, &rec.Patch, &blue, &red, &winner, &rec.GameStart); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(blue, &rec.BlueChamps); err != nil {
			return nil, fmt.Errorf("decode blue champs for %s: %w", rec.MatchID, err)
		}
		if err := json.Unmarshal(red, &rec.RedChamps); err != nil {
			return nil, fmt.Errorf("decode red champs for %s: %w", rec.MatchID, err)
		}
		rec.Winner = Side(winner)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) EnsureSubject(ctx context.Context, puuid string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO subjects (puuid, last_fetch) VALUES ($1, 0)
		ON CONFLICT (puuid) DO NOTHING
	`, puuid)
	if err != nil {
		return fmt.Errorf("ensure subject: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, puuid string) (Checkpoint, bool, error) {
	var cp Checkpoint
	err := p.pool.QueryRow(ctx,
		`SELECT puuid, last_fetch FROM subjects WHERE puuid = $1`, puuid).
		Scan(&cp.PUUID, &cp.LastFetch)
	if err == pgx.ErrNoRows {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("get checkpoint: %w", err)
	}
	return cp, true, nil
}

func (p *Postgres) Upsert(ctx context.Context, cp Checkpoint) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO subjects (puuid, last_fetch) VALUES ($1, $2)
		ON CONFLICT (puuid) DO UPDATE SET last_fetch = EXCLUDED.last_fetch
	`, cp.PUUID, cp.LastFetch)
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, puuid string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM subjects WHERE puuid = $1`, puuid)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (p *Postgres) Oldest(ctx context.Context) (Checkpoint, error) {
	var cp Checkpoint
	err := p.pool.QueryRow(ctx,
		`SELECT puuid, last_fetch FROM subjects ORDER BY last_fetch, puuid LIMIT 1`).
		Scan(&cp.PUUID, &cp.LastFetch)
	if err == pgx.ErrNoRows {
		return Checkpoint{}, ErrNoSubjects
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("oldest checkpoint: %w", err)
	}
	return cp, nil
}
