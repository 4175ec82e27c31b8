package lcu

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// LCU wamp-style opcodes.
const (
	opSubscribe   = 5
	opUnsubscribe = 6
	opEvent       = 8
)

// Event topics the assistant subscribes to.
const (
	topicChampSelect = "OnJsonApiEvent_lol-champ-select_v1_session"
	topicLobby       = "OnJsonApiEvent_lol-lobby_v2_lobby"
)

// Socket is the LCU websocket event feed. Frames are decoded into typed
// events and handed to a Dispatcher; the read loop is a single goroutine, so
// events of a kind arrive at handlers in wire order.
type Socket struct {
	conn       *websocket.Conn
	dispatcher *Dispatcher
}

// DialSocket connects to the client's websocket endpoint and subscribes to
// the champ select and lobby topics.
func DialSocket(creds *Credentials, d *Dispatcher) (*Socket, error) {
	dialer := websocket.Dialer{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		HandshakeTimeout: 5 * time.Second,
	}

	header := http.Header{}
	header.Set("Authorization", NewClient(creds).AuthHeader())

	conn, _, err := dialer.Dial(fmt.Sprintf("wss://127.0.0.1:%s", creds.Port), header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to LCU websocket: %w", err)
	}

	s := &Socket{conn: conn, dispatcher: d}
	for _, topic := range []string{topicChampSelect, topicLobby} {
		if err := conn.WriteJSON([]any{opSubscribe, topic}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
	}
	return s, nil
}

// Listen reads frames until the connection drops or ctx is cancelled.
func (s *Socket) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("lcu websocket read: %w", err)
		}
		if e := decodeFrame(message); e != nil {
			s.dispatcher.Dispatch(e)
		}
	}
}

// Close tears the connection down.
func (s *Socket) Close() error { return s.conn.Close() }

// decodeFrame turns a raw wire frame into a typed event, nil when the frame
// is not one we care about. Frames look like [8, "topic", {eventType, uri, data}].
func decodeFrame(data []byte) Event {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || len(raw) < 3 {
		return nil
	}

	var opcode int
	if err := json.Unmarshal(raw[0], &opcode); err != nil || opcode != opEvent {
		return nil
	}
	var topic string
	if err := json.Unmarshal(raw[1], &topic); err != nil {
		return nil
	}

	var envelope struct {
		EventType string          `json:"eventType"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw[2], &envelope); err != nil {
		return nil
	}

	switch topic {
	case topicChampSelect:
		if envelope.EventType == "Delete" {
			return SessionEnded{}
		}
		return decodeSession(envelope.Data)
	case topicLobby:
		if envelope.EventType == "Delete" {
			return nil
		}
		return decodeLobby(envelope.Data)
	default:
		return nil
	}
}

func decodeSession(data []byte) Event {
	var session struct {
		LocalPlayerCellID int   `json:"localPlayerCellId"`
		BenchChampions    []int `json:"benchChampionIds"`
		MyTeam            []struct {
			CellID     int   `json:"cellId"`
			SummonerID int64 `json:"summonerId"`
			ChampionID int   `json:"championId"`
		} `json:"myTeam"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		log.Printf("[LCU] Failed to parse champ select session: %v", err)
		return nil
	}

	e := SessionChanged{
		Team:  make(map[int64]int, len(session.MyTeam)),
		Bench: append([]int(nil), session.BenchChampions...),
	}
	for _, p := range session.MyTeam {
		e.Team[p.SummonerID] = p.ChampionID
		if p.CellID == session.LocalPlayerCellID {
			e.LocalSummonerID = p.SummonerID
		}
	}
	return e
}

func decodeLobby(data []byte) Event {
	var lobby struct {
		LocalMember struct {
			SummonerID int64 `json:"summonerId"`
		} `json:"localMember"`
		Members []struct {
			SummonerID int64 `json:"summonerId"`
		} `json:"members"`
	}
	if err := json.Unmarshal(data, &lobby); err != nil {
		log.Printf("[LCU] Failed to parse lobby: %v", err)
		return nil
	}

	e := LobbyChanged{LocalID: lobby.LocalMember.SummonerID}
	for _, m := range lobby.Members {
		e.Members = append(e.Members, m.SummonerID)
	}
	return e
}
