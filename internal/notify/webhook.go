// Package notify pushes crawler lifecycle alerts to a Discord webhook, the
// channel that watches long unattended collection runs.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	colorRed   = 15158332 // 0xE74C3C, errors / key expiry
	colorGreen = 5763719  // 0x57F287, healthy status

	defaultWebhookTimeout = 10 * time.Second

	// Retries when Discord rate limits the webhook.
	maxRetries = 3
)

// WebhookPayload is a Discord webhook message.
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed is a Discord rich embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// NewKeyExpiredPayload alerts that the Riot API key stopped working mid-run.
func NewKeyExpiredPayload(matchesStored int64, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Content: "@here API Key Expired!",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Expired",
				Color: colorRed,
				Fields: []EmbedField{
					{
						Name:   "Matches Stored",
						Value:  formatNumber(matchesStored),
						Inline: true,
					},
					{
						Name:   "Runtime",
						Value:  formatDuration(runtime),
						Inline: true,
					},
				},
				Footer: &EmbedFooter{
					Text: "Restart the crawler with a fresh RGAPI-xxx key",
				},
			},
		},
	}
}

// NewCrawlStartedPayload announces a fresh collection run.
func NewCrawlStartedPayload(apiKey, seedRiotID string) WebhookPayload {
	seed := seedRiotID
	if seed == "" {
		seed = "existing subject queue"
	}
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "✅ Crawl Started",
				Color: colorGreen,
				Fields: []EmbedField{
					{
						Name:   "Key",
						Value:  maskAPIKey(apiKey),
						Inline: true,
					},
					{
						Name:   "Seed",
						Value:  seed,
						Inline: true,
					},
				},
			},
		},
	}
}

// NewStatusPayload summarizes a running crawl.
func NewStatusPayload(stored, duplicates, retired, errors int64, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title: "📊 Crawl Status",
				Color: colorGreen,
				Fields: []EmbedField{
					{Name: "Matches Stored", Value: formatNumber(stored), Inline: true},
					{Name: "Duplicates", Value: formatNumber(duplicates), Inline: true},
					{Name: "Subjects Retired", Value: formatNumber(retired), Inline: true},
					{Name: "Errors", Value: formatNumber(errors), Inline: true},
					{Name: "Runtime", Value: formatDuration(runtime), Inline: true},
				},
			},
		},
	}
}

// WebhookClient sends payloads to one Discord webhook.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// Send posts a payload, retrying when Discord rate limits the webhook.
func (c *WebhookClient) Send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord answers 204 No Content on success.
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Second
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					wait = time.Duration(seconds) * time.Second
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber renders 47832 as "47,832".
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 1000 {
		return s
	}
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// maskAPIKey keeps enough of the key to recognize it: "RGAPI-...cdef".
func maskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
