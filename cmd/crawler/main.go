// Command crawler runs the unattended ARAM match collector: it walks the
// subject queue, pulls fresh match history through the rate-limited Riot
// API and persists normalized records for training.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aramcoach/internal/config"
	"aramcoach/internal/crawler"
	"aramcoach/internal/notify"
	"aramcoach/internal/ratelimit"
	"aramcoach/internal/riot"
	"aramcoach/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Crawler] Bad configuration: %v", err)
	}
	if err := cfg.ValidateCrawler(); err != nil {
		log.Fatalf("[Crawler] Bad configuration: %v", err)
	}

	seedID := flag.String("riot-id", cfg.SeedRiotID, "Seed Riot ID (e.g. 'Player#EUW')")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[Crawler] Shutting down...")
		cancel()
	}()

	db, closeDB, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[Crawler] Failed to open store: %v", err)
	}
	defer closeDB()

	client, err := riot.NewClient(cfg.RiotAPIKey, ratelimit.New(ratelimit.Config{}), nil)
	if err != nil {
		log.Fatalf("[Crawler] Failed to build API client: %v", err)
	}
	if cfg.RiotBaseURL != "" {
		client.SetBaseURL(cfg.RiotBaseURL)
	}

	start := time.Now()
	crawlerCfg := crawler.Config{
		AgeLimit:      cfg.AgeLimit,
		RetryInterval: cfg.RetryInterval,
	}

	var c *crawler.Crawler
	var webhook *notify.WebhookClient
	if cfg.WebhookURL != "" {
		webhook = notify.NewWebhookClient(cfg.WebhookURL)
		crawlerCfg.OnAuthFailure = func() {
			payload := notify.NewKeyExpiredPayload(c.Stats().Stored.Load(), time.Since(start))
			if err := webhook.Send(context.Background(), payload); err != nil {
				log.Printf("[Crawler] Failed to send key alert: %v", err)
			}
		}
	}

	c = crawler.New(client, db, crawlerCfg)

	if *seedID != "" {
		if err := c.Seed(ctx, *seedID); err != nil {
			log.Fatalf("[Crawler] Failed to seed: %v", err)
		}
	}

	if webhook != nil {
		if err := webhook.Send(ctx, notify.NewCrawlStartedPayload(cfg.RiotAPIKey, *seedID)); err != nil {
			log.Printf("[Crawler] Failed to announce start: %v", err)
		}
		go reportWebhookStatus(ctx, c, webhook, start)
	}

	go reportStats(ctx, c)

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Crawler] Stopped: %v", err)
	}
	logStats(c)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("[Crawler] Using Postgres store")
		return pg, pg.Close, nil
	}
	sq, err := store.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[Crawler] Using SQLite store at %s", cfg.SQLitePath)
	return sq, func() { sq.Close() }, nil
}

// reportWebhookStatus posts an hourly crawl summary to the alert channel.
func reportWebhookStatus(ctx context.Context, c *crawler.Crawler, webhook *notify.WebhookClient, start time.Time) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Stats()
			payload := notify.NewStatusPayload(
				s.Stored.Load(), s.Duplicates.Load(), s.Retired.Load(), s.Errors.Load(),
				time.Since(start))
			if err := webhook.Send(ctx, payload); err != nil {
				log.Printf("[Crawler] Failed to post status: %v", err)
			}
		}
	}
}

func reportStats(ctx context.Context, c *crawler.Crawler) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logStats(c)
		}
	}
}

func logStats(c *crawler.Crawler) {
	s := c.Stats()
	log.Printf("[Crawler] sweeps=%d stored=%d duplicates=%d notfound=%d malformed=%d retired=%d errors=%d",
		s.Sweeps.Load(), s.Stored.Load(), s.Duplicates.Load(),
		s.NotFound.Load(), s.Malformed.Load(), s.Retired.Load(), s.Errors.Load())
}
