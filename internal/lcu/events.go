package lcu

import "sync"

// EventKind identifies which client feed an event came from.
type EventKind int

const (
	// KindSession: the ARAM champ select session changed.
	KindSession EventKind = iota
	// KindSessionEnded: champ select was torn down.
	KindSessionEnded
	// KindLobby: the pre-game lobby membership changed.
	KindLobby
)

// Event is a decoded client event. The concrete types below are the only
// implementations.
type Event interface {
	Kind() EventKind
}

// SessionChanged carries the draft state of an ARAM champ select: who on
// your team currently holds which champion, and what sits on the bench.
type SessionChanged struct {
	// Team maps summoner id to the champion currently assigned to them.
	Team map[int64]int
	// Bench holds the champion ids available for trading.
	Bench []int
	// LocalSummonerID ties the local player to their Team entry.
	LocalSummonerID int64
}

func (SessionChanged) Kind() EventKind { return KindSession }

// SessionEnded signals the champ select session was deleted.
type SessionEnded struct{}

func (SessionEnded) Kind() EventKind { return KindSessionEnded }

// LobbyChanged carries the lobby roster, used to tell premades apart from
// random teammates.
type LobbyChanged struct {
	// LocalID is the local player's summoner id, zero if absent.
	LocalID int64
	// Members are the summoner ids currently in the lobby.
	Members []int64
}

func (LobbyChanged) Kind() EventKind { return KindLobby }

// Handler consumes one event.
type Handler func(Event)

// Dispatcher fans decoded events out to subscribers. Handlers for a given
// kind run in the order events were published, on the publisher's goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventKind][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind][]Handler)}
}

// Subscribe registers a handler for one event kind.
func (d *Dispatcher) Subscribe(kind EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Dispatch delivers an event to every handler of its kind.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.RLock()
	hs := d.handlers[e.Kind()]
	d.mu.RUnlock()
	for _, h := range hs {
		h(e)
	}
}
