// Package recommend turns ARAM champ select state into ranked swap
// suggestions: enumerate the compositions reachable from the bench, score
// each against the win-probability model, and publish the ordering.
package recommend

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"aramcoach/internal/champion"
	"aramcoach/internal/lcu"
)

// Suggestion is one reachable composition and its predicted win chance.
type Suggestion struct {
	// Take lists the pool champions used to fill the open slots. Empty when
	// the team was already complete.
	Take []int `json:"take"`
	// Team is the full five-champion composition that was scored.
	Team []int `json:"team"`
	// WinProbability is the model's win estimate for Team.
	WinProbability float64 `json:"winProbability"`
}

// View is a ranked list of suggestions for one way of slicing the draft.
type View struct {
	// Name is "you" for the local player's choices, "premades" for the
	// premade group's combined choices.
	Name        string       `json:"name"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Recommendation is the output of one scoring round.
type Recommendation struct {
	Generation uint64 `json:"generation"`
	Views      []View `json:"views"`
}

// Rank scores every composition of known plus a k-subset of pool, where k
// fills the team to five. Results are ordered by descending win probability;
// equal probabilities keep enumeration order.
func Rank(ctx context.Context, reg *champion.Registry, oracle Oracle, known, pool []int) ([]Suggestion, error) {
	k := 5 - len(known)
	if k < 0 {
		return nil, fmt.Errorf("known side has %d champions, more than a team holds", len(known))
	}

	var subsets [][]int
	if k == 0 {
		// Team already complete: score it as the single candidate.
		subsets = [][]int{nil}
	} else {
		subsets = Combinations(pool, k)
	}
	if len(subsets) == 0 {
		return nil, nil
	}

	teams := make([][]int, len(subsets))
	vectors := make([]champion.Vector, len(subsets))
	for i, sub := range subsets {
		members := make([]int, 0, 5)
		members = append(members, known...)
		members = append(members, sub...)
		team, err := champion.NewComposition(members...)
		if err != nil {
			return nil, err
		}
		v, err := reg.Encode(team)
		if err != nil {
			return nil, err
		}
		teams[i] = team
		vectors[i] = v
	}

	probs, err := oracle.Score(ctx, vectors)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}

	out := make([]Suggestion, len(subsets))
	for i := range subsets {
		out[i] = Suggestion{Take: subsets[i], Team: teams[i], WinProbability: probs[i]}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].WinProbability > out[b].WinProbability
	})
	return out, nil
}

// Engine consumes client events and keeps exactly one scoring round in
// flight: a newer draft state cancels and supersedes the older round.
type Engine struct {
	reg    *champion.Registry
	oracle Oracle
	sink   func(Recommendation)

	mu         sync.Mutex
	localID    int64
	team       map[int64]int
	bench      []int
	lobby      map[int64]struct{}
	generation uint64
	cancel     context.CancelFunc
}

// NewEngine wires the registry, the scoring oracle and the sink that
// receives each finished recommendation.
func NewEngine(reg *champion.Registry, oracle Oracle, sink func(Recommendation)) *Engine {
	return &Engine{
		reg:    reg,
		oracle: oracle,
		sink:   sink,
		team:   make(map[int64]int),
		lobby:  make(map[int64]struct{}),
	}
}

// Bind subscribes the engine to the client event feed.
func (e *Engine) Bind(d *lcu.Dispatcher) {
	d.Subscribe(lcu.KindSession, func(ev lcu.Event) {
		e.OnSessionChanged(ev.(lcu.SessionChanged))
	})
	d.Subscribe(lcu.KindSessionEnded, func(lcu.Event) {
		e.OnSessionEnded()
	})
	d.Subscribe(lcu.KindLobby, func(ev lcu.Event) {
		e.OnLobbyChanged(ev.(lcu.LobbyChanged))
	})
}

// OnLobbyChanged records the lobby roster. It influences the premade view of
// the next scoring round but does not trigger one itself.
func (e *Engine) OnLobbyChanged(ev lcu.LobbyChanged) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev.LocalID != 0 {
		e.localID = ev.LocalID
	}
	e.lobby = make(map[int64]struct{}, len(ev.Members))
	for _, id := range ev.Members {
		e.lobby[id] = struct{}{}
	}
}

// OnSessionChanged absorbs the new draft state and starts a scoring round
// for it, cancelling whatever round was still running.
func (e *Engine) OnSessionChanged(ev lcu.SessionChanged) {
	e.mu.Lock()
	if ev.LocalSummonerID != 0 {
		e.localID = ev.LocalSummonerID
	}
	e.team = ev.Team
	e.bench = ev.Bench
	views := e.buildViews()
	e.launchLocked(views)
	e.mu.Unlock()
}

// OnSessionEnded clears the draft and invalidates any in-flight round.
func (e *Engine) OnSessionEnded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.team = make(map[int64]int)
	e.bench = nil
}

// viewInput is a snapshot of one view's inputs, safe to score outside the
// lock.
type viewInput struct {
	name  string
	known []int
	pool  []int
}

// buildViews derives the scoring inputs from the current draft. Callers hold
// e.mu.
func (e *Engine) buildViews() []viewInput {
	myChamp := e.team[e.localID]

	var teammates []int
	for id, champ := range e.team {
		if id != e.localID && champ != 0 {
			teammates = append(teammates, champ)
		}
	}
	sort.Ints(teammates)

	views := []viewInput{{
		name:  "you",
		known: teammates,
		pool:  dedupe(e.bench, myChamp),
	}}

	// Premades are lobby members sitting on this team. With two or more the
	// group can pool its current champions with the bench and trade freely.
	var premades []int64
	for id := range e.team {
		if _, ok := e.lobby[id]; ok {
			premades = append(premades, id)
		}
	}
	if len(premades) >= 2 {
		inGroup := make(map[int64]struct{}, len(premades))
		var groupChamps []int
		for _, id := range premades {
			inGroup[id] = struct{}{}
			if champ := e.team[id]; champ != 0 {
				groupChamps = append(groupChamps, champ)
			}
		}
		var known []int
		for id, champ := range e.team {
			if _, ok := inGroup[id]; !ok && champ != 0 {
				known = append(known, champ)
			}
		}
		sort.Ints(known)
		views = append(views, viewInput{
			name:  "premades",
			known: known,
			pool:  dedupe(e.bench, groupChamps...),
		})
	}
	return views
}

// launchLocked starts the scoring round for the given views. Callers hold
// e.mu.
func (e *Engine) launchLocked(views []viewInput) {
	e.generation++
	gen := e.generation
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	go func() {
		defer cancel()
		rec := Recommendation{Generation: gen}
		for _, v := range views {
			suggestions, err := Rank(ctx, e.reg, e.oracle, v.known, v.pool)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[Recommend] Scoring round %d failed: %v", gen, err)
				}
				return
			}
			if suggestions == nil {
				continue
			}
			rec.Views = append(rec.Views, View{Name: v.name, Suggestions: suggestions})
		}
		if len(rec.Views) == 0 {
			return
		}

		// Publish only if no newer draft state superseded this round.
		e.mu.Lock()
		current := e.generation == gen
		e.mu.Unlock()
		if current {
			e.sink(rec)
		}
	}()
}

// dedupe merges the bench with extra champion ids, dropping zeros and
// repeats while preserving first-seen order.
func dedupe(bench []int, extra ...int) []int {
	seen := make(map[int]struct{}, len(bench)+len(extra))
	out := make([]int, 0, len(bench)+len(extra))
	for _, id := range append(append([]int(nil), bench...), extra...) {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
