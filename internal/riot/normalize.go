package riot

import (
	"errors"
	"fmt"
	"strings"

	"aramcoach/internal/store"
)

// ErrMalformedMatch marks a remote match record that violates the shape we
// persist: two teams of five with exactly one winner.
var ErrMalformedMatch = errors.New("malformed match")

// NormalizePatch reduces a full game version ("15.1.654.23") to its patch
// tag ("15.1").
func NormalizePatch(gameVersion string) string {
	parts := strings.SplitN(gameVersion, ".", 3)
	if len(parts) < 2 {
		return gameVersion
	}
	return parts[0] + "." + parts[1]
}

// Normalize converts a raw API match into the persisted record shape.
// The winner rule is by the recorded winning team only: a side wins iff the
// API marks that team as the winner.
func Normalize(m *MatchResponse) (store.MatchRecord, error) {
	id := m.Metadata.MatchID
	if id == "" {
		return store.MatchRecord{}, fmt.Errorf("%w: missing match id", ErrMalformedMatch)
	}

	var blue, red []int
	for _, p := range m.Info.Participants {
		switch p.TeamID {
		case TeamBlue:
			blue = append(blue, p.ChampionID)
		case TeamRed:
			red = append(red, p.ChampionID)
		default:
			return store.MatchRecord{}, fmt.Errorf("%w: %s: participant on unknown team %d", ErrMalformedMatch, id, p.TeamID)
		}
	}
	if len(blue) != 5 {
		return store.MatchRecord{}, fmt.Errorf("%w: %s: blue team has %d players, want 5", ErrMalformedMatch, id, len(blue))
	}
	if len(red) != 5 {
		return store.MatchRecord{}, fmt.Errorf("%w: %s: red team has %d players, want 5", ErrMalformedMatch, id, len(red))
	}

	var blueWin, redWin bool
	for _, t := range m.Info.Teams {
		switch t.TeamID {
		case TeamBlue:
			blueWin = t.Win
		case TeamRed:
			redWin = t.Win
		}
	}
	var winner store.Side
	switch {
	case blueWin && !redWin:
		winner = store.SideBlue
	case redWin && !blueWin:
		winner = store.SideRed
	default:
		return store.MatchRecord{}, fmt.Errorf("%w: %s: need exactly one winning side", ErrMalformedMatch, id)
	}

	return store.MatchRecord{
		MatchID:    id,
		Patch:      NormalizePatch(m.Info.GameVersion),
		BlueChamps: blue,
		RedChamps:  red,
		Winner:     winner,
		GameStart:  m.Info.GameStartTimestamp / 1000,
	}, nil
}
