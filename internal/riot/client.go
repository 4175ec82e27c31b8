package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"aramcoach/internal/ratelimit"
)

const defaultBaseURL = "https://europe.api.riotgames.com"

// Client is a rate-limited Riot match-v5 API client. Every request passes
// through the shared limiter before it is sent.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a client for the given API key. A nil limiter gets the
// default two-window dev-key limits; a nil httpClient gets a 30s timeout so
// a hung fetch is classified as transient instead of blocking forever.
func NewClient(apiKey string, limiter *ratelimit.Limiter, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot api key is empty")
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Config{})
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// SetBaseURL overrides the regional API host. Used by tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

// doRequest acquires the rate limiter, performs a GET and decodes the JSON
// response. Errors are classified per transport error class.
func (c *Client) doRequest(ctx context.Context, reqURL string, result interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classify(resp.StatusCode, reqURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response from %s: %w", reqURL, err)
	}
	return nil
}

// AccountByRiotID resolves a Riot ID (gameName#tagLine) to an account.
func (c *Client) AccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	reqURL := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.baseURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, reqURL, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// MatchIDsByPUUID fetches the subject's ARAM match ids played since the given
// unix time, newest first. Riot caps the page at 100 ids.
func (c *Client) MatchIDsByPUUID(ctx context.Context, puuid string, since int64) ([]string, error) {
	reqURL := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?queue=%d&startTime=%d&count=100",
		c.baseURL, url.PathEscape(puuid), QueueARAM, since)

	var ids []string
	if err := c.doRequest(ctx, reqURL, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Match fetches full match details.
func (c *Client) Match(ctx context.Context, matchID string) (*MatchResponse, error) {
	reqURL := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.baseURL, url.PathEscape(matchID))

	var match MatchResponse
	if err := c.doRequest(ctx, reqURL, &match); err != nil {
		return nil, err
	}
	return &match, nil
}
