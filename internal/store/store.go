// Package store persists normalized match records and per-summoner fetch
// checkpoints. The crawler is the sole writer of match records; the model
// trainer reads them out of band.
package store

import (
	"context"
	"errors"
)

// Side identifies one of the two teams in a match.
type Side string

const (
	SideBlue Side = "blue"
	SideRed  Side = "red"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool { return s == SideBlue || s == SideRed }

// MatchRecord is one normalized ARAM match outcome.
type MatchRecord struct {
	MatchID    string `json:"matchId"`
	Patch      string `json:"patch"`
	BlueChamps []int  `json:"blueChamps"`
	RedChamps  []int  `json:"redChamps"`
	Winner     Side   `json:"winner"`
	GameStart  int64  `json:"gameStart"`
}

// Checkpoint tracks when a crawl subject's history was last swept.
type Checkpoint struct {
	PUUID     string
	LastFetch int64 // unix seconds; 0 means never fetched
}

// Filter narrows a match query. Zero fields match everything.
type Filter struct {
	Patch string // exact patch tag
	Since int64  // minimum game start, unix seconds
}

// ErrNoSubjects is returned by Oldest when no crawl subjects are registered.
var ErrNoSubjects = errors.New("no crawl subjects registered")

// MatchStore is the persisted match collection. Insert is idempotent on
// MatchID: re-inserting an already-stored match is a no-op.
type MatchStore interface {
	Insert(ctx context.Context, rec MatchRecord) error
	Exists(ctx context.Context, matchID string) (bool, error)
	Find(ctx context.Context, f Filter) ([]MatchRecord, error)
}

// CheckpointStore tracks crawl subjects and their sweep checkpoints.
type CheckpointStore interface {
	// EnsureSubject registers a subject if absent, with LastFetch zero so it
	// sorts first. Existing checkpoints are left untouched.
	EnsureSubject(ctx context.Context, puuid string) error
	Get(ctx context.Context, puuid string) (Checkpoint, bool, error)
	Upsert(ctx context.Context, cp Checkpoint) error
	Delete(ctx context.Context, puuid string) error
	// Oldest returns the least-recently-fetched subject, ErrNoSubjects if none.
	Oldest(ctx context.Context) (Checkpoint, error)
}

// Store bundles both collections, the way each backend provides them.
type Store interface {
	MatchStore
	CheckpointStore
}
