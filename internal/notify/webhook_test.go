package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestKeyExpiredPayload_Format(t *testing.T) {
	payload := NewKeyExpiredPayload(47832, 18*time.Hour+32*time.Minute)

	if !strings.Contains(payload.Content, "@here") {
		t.Error("expected @here mention in content")
	}
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}

	embed := payload.Embeds[0]
	if !strings.Contains(embed.Title, "API Key Expired") {
		t.Errorf("title = %q", embed.Title)
	}
	if embed.Color != colorRed {
		t.Errorf("color = %d, want %d", embed.Color, colorRed)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Value != "47,832" {
		t.Errorf("matches value = %q, want \"47,832\"", embed.Fields[0].Value)
	}
	if embed.Fields[1].Value != "18h 32m" {
		t.Errorf("runtime value = %q, want \"18h 32m\"", embed.Fields[1].Value)
	}
}

func TestCrawlStartedPayload_MasksKey(t *testing.T) {
	payload := NewCrawlStartedPayload("RGAPI-12345678-abcd-efgh", "Player#EUW")

	key := payload.Embeds[0].Fields[0].Value
	if strings.Contains(key, "12345678") {
		t.Errorf("key not masked: %q", key)
	}
	if !strings.HasPrefix(key, "RGAPI") {
		t.Errorf("masked key lost its prefix: %q", key)
	}

	short := NewCrawlStartedPayload("short", "")
	if got := short.Embeds[0].Fields[0].Value; got != "****" {
		t.Errorf("short key masked as %q, want \"****\"", got)
	}
	if got := short.Embeds[0].Fields[1].Value; got != "existing subject queue" {
		t.Errorf("empty seed rendered as %q", got)
	}
}

func TestWebhookClient_Send(t *testing.T) {
	var received WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)
	payload := NewStatusPayload(100, 20, 3, 1, time.Hour)
	if err := c.Send(context.Background(), payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(received.Embeds) != 1 || received.Embeds[0].Title != "📊 Crawl Status" {
		t.Errorf("server received %+v", received)
	}
}

func TestWebhookClient_RetriesOnRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)
	if err := c.Send(context.Background(), WebhookPayload{Content: "test"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWebhookClient_FailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)
	if err := c.Send(context.Background(), WebhookPayload{Content: "test"}); err == nil {
		t.Error("Send accepted a 400 response")
	}
}
