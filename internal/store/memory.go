package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store used by tests and the simulator.
type Memory struct {
	mu          sync.Mutex
	matches     map[string]MatchRecord
	order       []string // insertion order of match ids
	checkpoints map[string]int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		matches:     make(map[string]MatchRecord),
		checkpoints: make(map[string]int64),
	}
}

func (m *Memory) Insert(_ context.Context, rec MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.matches[rec.MatchID]; dup {
		return nil
	}
	m.matches[rec.MatchID] = rec
	m.order = append(m.order, rec.MatchID)
	return nil
}

func (m *Memory) Exists(_ context.Context, matchID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.matches[matchID]
	return ok, nil
}

func (m *Memory) Find(_ context.Context, f Filter) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MatchRecord
	for _, id := range m.order {
		rec := m.matches[id]
		if f.Patch != "" && rec.Patch != f.Patch {
			continue
		}
		if f.Since != 0 && rec.GameStart < f.Since {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) EnsureSubject(_ context.Context, puuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checkpoints[puuid]; !ok {
		m.checkpoints[puuid] = 0
	}
	return nil
}

func (m *Memory) Get(_ context.Context, puuid string) (Checkpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.checkpoints[puuid]
	if !ok {
		return Checkpoint{}, false, nil
	}
	return Checkpoint{PUUID: puuid, LastFetch: last}, true, nil
}

func (m *Memory) Upsert(_ context.Context, cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.PUUID] = cp.LastFetch
	return nil
}

func (m *Memory) Delete(_ context.Context, puuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, puuid)
	return nil
}

func (m *Memory) Oldest(_ context.Context) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.checkpoints) == 0 {
		return Checkpoint{}, ErrNoSubjects
	}
	var oldest Checkpoint
	first := true
	for puuid, last := range m.checkpoints {
		// Ties broken by puuid so selection is deterministic.
		if first || last < oldest.LastFetch || (last == oldest.LastFetch && puuid < oldest.PUUID) {
			oldest = Checkpoint{PUUID: puuid, LastFetch: last}
			first = false
		}
	}
	return oldest, nil
}
