// Package crawler drives the unattended match-history ingestion loop:
// pick the least-recently-swept subject, fetch its ARAM history through the
// shared rate limiter, persist new matches, discover new subjects from
// participants. Designed to run indefinitely; only the context stops it.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"aramcoach/internal/ratelimit"
	"aramcoach/internal/riot"
	"aramcoach/internal/store"

	"github.com/bits-and-blooms/bloom/v3"
)

// Fetcher is the slice of the Riot client the crawler needs. Narrowed to an
// interface so tests can script remote behavior.
type Fetcher interface {
	AccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	MatchIDsByPUUID(ctx context.Context, puuid string, since int64) ([]string, error)
	Match(ctx context.Context, matchID string) (*riot.MatchResponse, error)
}

// Config tunes the crawl loop. Zero values fall back to defaults.
type Config struct {
	// AgeLimit bounds how far back history is fetched and when an idle
	// subject is retired. Default 7 days, the window the trainer consumes.
	AgeLimit time.Duration

	// RetryInterval is the fixed wait before retrying a throttled or
	// transient fetch. Default 10s.
	RetryInterval time.Duration

	// MaxAttempts bounds retries per request before giving up on the item.
	// Default 3.
	MaxAttempts int

	// IdleWait is how long to sleep when no subjects are registered.
	// Default 30s.
	IdleWait time.Duration

	// Clock is injectable for tests. Default is the wall clock.
	Clock ratelimit.Clock

	// OnAuthFailure fires once when the API starts rejecting the key
	// (401/403), the usual way a development key dies mid-run.
	OnAuthFailure func()
}

func (c *Config) defaults() {
	if c.AgeLimit <= 0 {
		c.AgeLimit = 7 * 24 * time.Hour
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.IdleWait <= 0 {
		c.IdleWait = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = ratelimit.SystemClock
	}
}

// Stats counts crawl outcomes. Read concurrently by status reporting.
type Stats struct {
	Sweeps     atomic.Int64
	Stored     atomic.Int64
	Duplicates atomic.Int64
	NotFound   atomic.Int64
	Malformed  atomic.Int64
	Retired    atomic.Int64
	Errors     atomic.Int64
}

// Crawler is a single sequential worker over the checkpoint queue.
type Crawler struct {
	client     Fetcher
	db         store.Store
	cfg        Config
	seen       *bloom.BloomFilter
	stats      Stats
	authFailed atomic.Bool
}

// New creates a crawler over the given client and store.
func New(client Fetcher, db store.Store, cfg Config) *Crawler {
	cfg.defaults()
	return &Crawler{
		client: client,
		db:     db,
		cfg:    cfg,
		// In-memory fast path in front of store.Exists; false positives
		// are re-checked against the store before skipping.
		seen: bloom.NewWithEstimates(500000, 0.001),
	}
}

// Stats exposes the counters.
func (c *Crawler) Stats() *Stats { return &c.stats }

// Seed resolves a Riot ID ("Name#Tag") and registers it as a crawl subject.
func (c *Crawler) Seed(ctx context.Context, riotID string) error {
	name, tag, ok := strings.Cut(riotID, "#")
	if !ok {
		return fmt.Errorf("invalid riot id %q, want Name#Tag", riotID)
	}
	account, err := c.fetchAccount(ctx, name, tag)
	if err != nil {
		return fmt.Errorf("resolve riot id %q: %w", riotID, err)
	}
	if err := c.db.EnsureSubject(ctx, account.PUUID); err != nil {
		return fmt.Errorf("register seed subject: %w", err)
	}
	log.Printf("[Crawler] Seeded subject %s (%s#%s)", shortID(account.PUUID), name, tag)
	return nil
}

// Run crawls until ctx is cancelled. Per-item failures are classified,
// logged and absorbed; the loop itself never exits on an error.
func (c *Crawler) Run(ctx context.Context) error {
	log.Printf("[Crawler] Starting (age limit %s)", c.cfg.AgeLimit)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cp, err := c.db.Oldest(ctx)
		if errors.Is(err, store.ErrNoSubjects) {
			log.Printf("[Crawler] No subjects registered, waiting %s", c.cfg.IdleWait)
			if err := c.sleep(ctx, c.cfg.IdleWait); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			c.stats.Errors.Add(1)
			log.Printf("[Crawler] Failed to pick subject: %v", err)
			if err := c.sleep(ctx, c.cfg.IdleWait); err != nil {
				return err
			}
			continue
		}

		if err := c.sweep(ctx, cp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.stats.Errors.Add(1)
			c.noteAuthFailure(err)
			log.Printf("[Crawler] Sweep for %s failed: %v", shortID(cp.PUUID), err)
		}
	}
}

// sweep is one fetch-and-ingest pass over a single subject's history since
// its checkpoint (or the global age floor).
func (c *Crawler) sweep(ctx context.Context, cp store.Checkpoint) error {
	now := c.cfg.Clock.Now().Unix()
	floor := now - int64(c.cfg.AgeLimit/time.Second)
	since := cp.LastFetch
	if floor > since {
		since = floor
	}

	ids, err := c.fetchMatchIDs(ctx, cp.PUUID, since)
	if err != nil {
		if errors.Is(err, riot.ErrNotFound) {
			// Subject unknown to the remote; count it and move on. The
			// checkpoint still advances so it does not wedge the queue.
			c.stats.NotFound.Add(1)
		} else {
			return fmt.Errorf("fetch history: %w", err)
		}
	}

	stored := 0
	for _, matchID := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := c.ingest(ctx, matchID)
		if err != nil {
			c.stats.Errors.Add(1)
			c.noteAuthFailure(err)
			log.Printf("[Crawler] Failed to ingest %s: %v", matchID, err)
			continue
		}
		if ok {
			stored++
		}
	}

	c.stats.Sweeps.Add(1)

	// Empty sweep on a checkpoint past the age limit: subject is exhausted.
	// It is rediscovered if it reappears as a participant later.
	if stored == 0 && cp.LastFetch < floor {
		c.stats.Retired.Add(1)
		log.Printf("[Crawler] Retiring stale subject %s", shortID(cp.PUUID))
		if err := c.db.Delete(ctx, cp.PUUID); err != nil {
			return fmt.Errorf("retire subject: %w", err)
		}
		return nil
	}

	// Advance the checkpoint even on empty sweeps so this subject does not
	// starve the rest of the queue.
	if err := c.db.Upsert(ctx, store.Checkpoint{PUUID: cp.PUUID, LastFetch: now}); err != nil {
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return nil
}

// ingest fetches, normalizes and persists one match. Returns true when a new
// record was stored, false on duplicate or skippable conditions.
func (c *Crawler) ingest(ctx context.Context, matchID string) (bool, error) {
	// Fast path for ids already handled this run. A bloom false positive
	// drops at most one in a thousand matches, which the dataset tolerates.
	if c.seen.TestString(matchID) {
		c.stats.Duplicates.Add(1)
		return false, nil
	}
	// Matches stored by earlier runs are only visible to the store.
	exists, err := c.db.Exists(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		c.seen.AddString(matchID)
		c.stats.Duplicates.Add(1)
		return false, nil
	}

	m, err := c.fetchMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, riot.ErrNotFound) {
			c.stats.NotFound.Add(1)
			c.seen.AddString(matchID)
			return false, nil
		}
		return false, err
	}

	rec, err := riot.Normalize(m)
	if err != nil {
		c.stats.Malformed.Add(1)
		c.seen.AddString(matchID)
		log.Printf("[Crawler] Skipping malformed match %s: %v", matchID, err)
		return false, nil
	}

	if err := c.db.Insert(ctx, rec); err != nil {
		return false, fmt.Errorf("store match: %w", err)
	}
	c.seen.AddString(matchID)
	c.stats.Stored.Add(1)

	// Every participant becomes a future crawl subject.
	for _, puuid := range m.Metadata.Participants {
		if err := c.db.EnsureSubject(ctx, puuid); err != nil {
			c.stats.Errors.Add(1)
			log.Printf("[Crawler] Failed to register participant %s: %v", shortID(puuid), err)
		}
	}
	return true, nil
}

// withRetry runs fn, retrying throttled/transient failures after the fixed
// retry interval, up to MaxAttempts total tries.
func (c *Crawler) withRetry(ctx context.Context, what string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !riot.Retryable(err) {
			return err
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		log.Printf("[Crawler] %s attempt %d/%d failed (%v), retrying in %s",
			what, attempt, c.cfg.MaxAttempts, err, c.cfg.RetryInterval)
		if serr := c.sleep(ctx, c.cfg.RetryInterval); serr != nil {
			return serr
		}
	}
	return err
}

func (c *Crawler) fetchAccount(ctx context.Context, name, tag string) (*riot.AccountResponse, error) {
	var account *riot.AccountResponse
	err := c.withRetry(ctx, "account lookup", func() error {
		var err error
		account, err = c.client.AccountByRiotID(ctx, name, tag)
		return err
	})
	return account, err
}

func (c *Crawler) fetchMatchIDs(ctx context.Context, puuid string, since int64) ([]string, error) {
	var ids []string
	err := c.withRetry(ctx, "history fetch", func() error {
		var err error
		ids, err = c.client.MatchIDsByPUUID(ctx, puuid, since)
		return err
	})
	return ids, err
}

func (c *Crawler) fetchMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error) {
	var m *riot.MatchResponse
	err := c.withRetry(ctx, "match fetch", func() error {
		var err error
		m, err = c.client.Match(ctx, matchID)
		return err
	})
	return m, err
}

// noteAuthFailure fires the auth hook the first time the API rejects the
// key.
func (c *Crawler) noteAuthFailure(err error) {
	if c.cfg.OnAuthFailure == nil {
		return
	}
	var se *riot.StatusError
	if !errors.As(err, &se) {
		return
	}
	if se.Status != http.StatusUnauthorized && se.Status != http.StatusForbidden {
		return
	}
	if !c.authFailed.Swap(true) {
		c.cfg.OnAuthFailure()
	}
}

func (c *Crawler) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.cfg.Clock.After(d):
		return nil
	}
}

func shortID(puuid string) string {
	if len(puuid) > 16 {
		return puuid[:16] + "..."
	}
	return puuid
}
