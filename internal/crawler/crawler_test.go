package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aramcoach/internal/riot"
	"aramcoach/internal/store"
)

// fakeClock serves a synthetic time and advances it whenever a caller waits.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeRiot scripts the remote side. histories maps puuid to match ids;
// matches maps match id to a response. failures maps match id to a one-shot
// error queue consumed before the real response is served.
type fakeRiot struct {
	mu        sync.Mutex
	histories map[string][]string
	matches   map[string]*riot.MatchResponse
	failures  map[string][]error

	historyCalls int
	matchCalls   int
}

func newFakeRiot() *fakeRiot {
	return &fakeRiot{
		histories: make(map[string][]string),
		matches:   make(map[string]*riot.MatchResponse),
		failures:  make(map[string][]error),
	}
}

func (f *fakeRiot) AccountByRiotID(_ context.Context, gameName, tagLine string) (*riot.AccountResponse, error) {
	return &riot.AccountResponse{PUUID: "puuid-" + gameName, GameName: gameName, TagLine: tagLine}, nil
}

func (f *fakeRiot) MatchIDsByPUUID(_ context.Context, puuid string, _ int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	if err := f.popFailure("history:" + puuid); err != nil {
		return nil, err
	}
	ids, ok := f.histories[puuid]
	if !ok {
		return nil, fmt.Errorf("history for %s: %w", puuid, riot.ErrNotFound)
	}
	return append([]string(nil), ids...), nil
}

func (f *fakeRiot) Match(_ context.Context, matchID string) (*riot.MatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls++
	if err := f.popFailure(matchID); err != nil {
		return nil, err
	}
	m, ok := f.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, riot.ErrNotFound)
	}
	return m, nil
}

// popFailure pops the next scripted error for a key. Callers hold f.mu.
func (f *fakeRiot) popFailure(key string) error {
	queue := f.failures[key]
	if len(queue) == 0 {
		return nil
	}
	f.failures[key] = queue[1:]
	return queue[0]
}

func (f *fakeRiot) addMatch(matchID string, participants []string, winner store.Side) {
	blueWin := winner == store.SideBlue
	m := &riot.MatchResponse{}
	m.Metadata.MatchID = matchID
	m.Metadata.Participants = participants
	m.Info.GameVersion = "15.4.123.456"
	m.Info.QueueID = riot.QueueARAM
	m.Info.GameStartTimestamp = 1_700_000_000_000
	for i := 0; i < 10; i++ {
		team := riot.TeamBlue
		win := blueWin
		if i >= 5 {
			team = riot.TeamRed
			win = !blueWin
		}
		puuid := ""
		if i < len(participants) {
			puuid = participants[i]
		}
		m.Info.Participants = append(m.Info.Participants, riot.MatchParticipant{
			PUUID: puuid, ChampionID: 100 + i, TeamID: team, Win: win,
		})
	}
	m.Info.Teams = []riot.MatchTeam{
		{TeamID: riot.TeamBlue, Win: blueWin},
		{TeamID: riot.TeamRed, Win: !blueWin},
	}
	f.matches[matchID] = m
}

func tenPlayers(prefix string) []string {
	players := make([]string, 10)
	for i := range players {
		players[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return players
}

func newTestCrawler(f *fakeRiot, db store.Store, clock *fakeClock) *Crawler {
	return New(f, db, Config{
		AgeLimit:      7 * 24 * time.Hour,
		RetryInterval: time.Second,
		MaxAttempts:   3,
		Clock:         clock,
	})
}

func TestSweep_StoresMatchesAndRegistersParticipants(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	remote.histories[players[0]] = []string{"EUW1_1", "EUW1_2"}
	remote.addMatch("EUW1_1", players, store.SideBlue)
	remote.addMatch("EUW1_2", players, store.SideRed)

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}
	cp, err := db.Oldest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	for _, id := range []string{"EUW1_1", "EUW1_2"} {
		ok, err := db.Exists(ctx, id)
		if err != nil || !ok {
			t.Errorf("match %s not stored (ok=%v err=%v)", id, ok, err)
		}
	}
	if got := c.Stats().Stored.Load(); got != 2 {
		t.Errorf("stored = %d, want 2", got)
	}

	// Every participant of a stored match becomes a subject.
	for _, p := range players {
		if _, ok, err := db.Get(ctx, p); err != nil || !ok {
			t.Errorf("participant %s not registered (ok=%v err=%v)", p, ok, err)
		}
	}

	// The swept subject's checkpoint advanced to the sweep time.
	got, ok, err := db.Get(ctx, players[0])
	if err != nil || !ok {
		t.Fatalf("checkpoint lookup failed: ok=%v err=%v", ok, err)
	}
	if got.LastFetch != clock.Now().Unix() {
		t.Errorf("checkpoint = %d, want %d", got.LastFetch, clock.Now().Unix())
	}
}

func TestSweep_ReingestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	remote.histories[players[0]] = []string{"EUW1_1"}
	remote.addMatch("EUW1_1", players, store.SideBlue)

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		cp, ok, err := db.Get(ctx, players[0])
		if err != nil || !ok {
			t.Fatalf("checkpoint lookup before sweep %d: ok=%v err=%v", i, ok, err)
		}
		if err := c.sweep(ctx, cp); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}

	recs, err := db.Find(ctx, store.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("stored %d records, want 1", len(recs))
	}
	if got := c.Stats().Duplicates.Load(); got != 1 {
		t.Errorf("duplicates = %d, want 1", got)
	}
	// The second sweep never refetched the match body.
	if remote.matchCalls != 1 {
		t.Errorf("match fetches = %d, want 1", remote.matchCalls)
	}
}

func TestSweep_RetiresStaleSubjectAfterEmptySweep(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	remote.histories[players[0]] = []string{"EUW1_1"}
	remote.addMatch("EUW1_1", players, store.SideBlue)

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}

	// First sweep yields a record, so the subject survives with a fresh
	// checkpoint.
	cp, _, err := db.Get(ctx, players[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Get(ctx, players[0]); !ok {
		t.Fatal("subject retired after a productive sweep")
	}

	// Past the age limit with nothing new: retired.
	clock.Advance(8 * 24 * time.Hour)
	cp, _, err = db.Get(ctx, players[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Get(ctx, players[0]); ok {
		t.Error("stale subject still registered after empty sweep")
	}
	if got := c.Stats().Retired.Load(); got != 1 {
		t.Errorf("retired = %d, want 1", got)
	}
}

func TestSweep_RetriesThrottledFetch(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	remote.histories[players[0]] = []string{"EUW1_1"}
	remote.addMatch("EUW1_1", players, store.SideBlue)
	remote.failures["history:"+players[0]] = []error{riot.ErrThrottled}
	remote.failures["EUW1_1"] = []error{riot.ErrTransient}

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}
	cp, err := db.Oldest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	ok, err := db.Exists(ctx, "EUW1_1")
	if err != nil || !ok {
		t.Fatalf("match not stored after retries (ok=%v err=%v)", ok, err)
	}
	if remote.historyCalls != 2 {
		t.Errorf("history calls = %d, want 2", remote.historyCalls)
	}
	if remote.matchCalls != 2 {
		t.Errorf("match calls = %d, want 2", remote.matchCalls)
	}
}

func TestSweep_SkipsUnavailableMatchesAndKeepsGoing(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	// EUW1_GONE has no match body, so fetching it yields not-found.
	remote.histories[players[0]] = []string{"EUW1_GONE", "EUW1_OK"}
	remote.addMatch("EUW1_OK", players, store.SideRed)

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}
	cp, err := db.Oldest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	ok, err := db.Exists(ctx, "EUW1_OK")
	if err != nil || !ok {
		t.Fatalf("surviving match not stored (ok=%v err=%v)", ok, err)
	}
	if got := c.Stats().NotFound.Load(); got != 1 {
		t.Errorf("not-found = %d, want 1", got)
	}
}

func TestSweep_NonRetryableFailureDoesNotAbortSubject(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	clock := newFakeClock()
	c := newTestCrawler(remote, db, clock)

	players := tenPlayers("p")
	remote.histories[players[0]] = []string{"EUW1_1", "EUW1_2"}
	remote.addMatch("EUW1_1", players, store.SideBlue)
	remote.addMatch("EUW1_2", players, store.SideBlue)
	remote.failures["EUW1_1"] = []error{&riot.StatusError{Status: 403, URL: "/matches/EUW1_1"}}

	if err := db.EnsureSubject(ctx, players[0]); err != nil {
		t.Fatal(err)
	}
	cp, err := db.Oldest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.sweep(ctx, cp); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if ok, _ := db.Exists(ctx, "EUW1_1"); ok {
		t.Error("forbidden match should not be stored")
	}
	ok, err := db.Exists(ctx, "EUW1_2")
	if err != nil || !ok {
		t.Errorf("second match not stored (ok=%v err=%v)", ok, err)
	}
	if got := c.Stats().Errors.Load(); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	remote := newFakeRiot()
	db := store.NewMemory()
	c := newTestCrawler(remote, db, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestSeed_RegistersResolvedAccount(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRiot()
	db := store.NewMemory()
	c := newTestCrawler(remote, db, newFakeClock())

	if err := c.Seed(ctx, "Player#EUW"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, ok, err := db.Get(ctx, "puuid-Player"); err != nil || !ok {
		t.Errorf("seed subject not registered (ok=%v err=%v)", ok, err)
	}

	if err := c.Seed(ctx, "no-tag"); err == nil {
		t.Error("Seed accepted a riot id without a tag")
	}
}
