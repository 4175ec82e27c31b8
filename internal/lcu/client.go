// Package lcu talks to the local League Client Update API: lockfile
// discovery, authenticated HTTPS requests and the websocket event feed the
// draft assistant consumes.
package lcu

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrLockfileNotFound = errors.New("lockfile not found")
	ErrLeagueNotRunning = errors.New("league client is not running")
)

// Credentials holds the LCU connection details parsed from lockfile
type Credentials struct {
	ProcessName string
	PID         string
	Port        string
	Password    string
	Protocol    string
}

// FindLockfile searches the given paths, then the common install locations,
// for the League Client lockfile.
func FindLockfile(extra ...string) (string, error) {
	paths := append([]string(nil), extra...)
	paths = append(paths,
		"C:/Riot Games/League of Legends/lockfile",
		"D:/Riot Games/League of Legends/lockfile",
		"C:/Program Files/Riot Games/League of Legends/lockfile",
		"C:/Program Files (x86)/Riot Games/League of Legends/lockfile",
		"/Applications/League of Legends.app/Contents/LoL/lockfile",
	)
	for _, drive := range []string{"E:", "F:", "G:"} {
		paths = append(paths, filepath.Join(drive, "Riot Games/League of Legends/lockfile"))
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrLockfileNotFound
}

// ParseLockfile reads and parses the lockfile content.
// Format: LeagueClient:pid:port:password:protocol
func ParseLockfile(path string) (*Credentials, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	return parseLockfileContent(string(content))
}

func parseLockfileContent(content string) (*Credentials, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid lockfile format: expected 5 parts, got %d", len(parts))
	}
	return &Credentials{
		ProcessName: parts[0],
		PID:         parts[1],
		Port:        parts[2],
		Password:    parts[3],
		Protocol:    parts[4],
	}, nil
}

// Client is an authenticated HTTP client for the local LCU REST API.
type Client struct {
	credentials *Credentials
	httpClient  *http.Client
	baseURL     string
	authHeader  string
}

// NewClient builds a client from parsed lockfile credentials.
func NewClient(creds *Credentials) *Client {
	return &Client{
		credentials: creds,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, // LCU uses a self-signed cert
				},
			},
			// Short timeout for quick disconnect detection.
			Timeout: 2 * time.Second,
		},
		baseURL:    fmt.Sprintf("https://127.0.0.1:%s", creds.Port),
		authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+creds.Password)),
	}
}

// SetBaseURL overrides the endpoint, used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// AuthHeader returns the basic-auth header value for these credentials.
func (c *Client) AuthHeader() string { return c.authHeader }

// Get performs a GET against the LCU API and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	if c.credentials == nil {
		return ErrLeagueNotRunning
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLeagueNotRunning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lcu returned status %d for %s", resp.StatusCode, endpoint)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Ping verifies the client process is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, "/lol-summoner/v1/current-summoner", nil)
}

// CurrentSummonerID returns the local player's summoner id, the key used to
// match them inside champ select and lobby payloads.
func (c *Client) CurrentSummonerID(ctx context.Context) (int64, error) {
	var summoner struct {
		SummonerID int64 `json:"summonerId"`
	}
	if err := c.Get(ctx, "/lol-summoner/v1/current-summoner", &summoner); err != nil {
		return 0, fmt.Errorf("failed to get current summoner: %w", err)
	}
	return summoner.SummonerID, nil
}

// GameflowPhase returns the current client phase ("Lobby", "ChampSelect", ...).
func (c *Client) GameflowPhase(ctx context.Context) (string, error) {
	var phase string
	if err := c.Get(ctx, "/lol-gameflow/v1/gameflow-phase", &phase); err != nil {
		return "", err
	}
	return phase, nil
}
