// Command assistant is the live ARAM draft helper. It attaches to the
// running League Client, follows champ select over the event socket and
// prints the bench swaps ranked by predicted win probability.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"aramcoach/internal/champion"
	"aramcoach/internal/config"
	"aramcoach/internal/lcu"
	"aramcoach/internal/recommend"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Assistant] Bad configuration: %v", err)
	}
	if err := cfg.ValidateAssistant(); err != nil {
		log.Fatalf("[Assistant] Bad configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("[Assistant] Shutting down...")
		cancel()
	}()

	registry, err := champion.NewLoader(nil).Load(ctx)
	if err != nil {
		log.Fatalf("[Assistant] Failed to load champion catalog: %v", err)
	}
	log.Printf("[Assistant] Champion catalog loaded (%d champions)", registry.Size())

	oracle := recommend.NewHTTPOracle(cfg.OracleURL, &http.Client{Timeout: 10 * time.Second})
	dispatcher := lcu.NewDispatcher()
	engine := recommend.NewEngine(registry, oracle, func(rec recommend.Recommendation) {
		printRecommendation(registry, rec)
	})
	engine.Bind(dispatcher)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return followClient(ctx, cfg, dispatcher)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("[Assistant] Stopped: %v", err)
	}
}

// followClient keeps a websocket attached to the League Client for as long
// as the process lives, redialing whenever the client restarts.
func followClient(ctx context.Context, cfg config.Config, d *lcu.Dispatcher) error {
	const redialWait = 5 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		creds, err := connectOnce(ctx, cfg, d)
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case err != nil:
			log.Printf("[Assistant] League client unavailable (%v), retrying in %s", err, redialWait)
		default:
			log.Printf("[Assistant] Disconnected from client on port %s", creds.Port)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redialWait):
		}
	}
}

// connectOnce discovers the lockfile, verifies the REST API answers, then
// pumps websocket events until the connection drops.
func connectOnce(ctx context.Context, cfg config.Config, d *lcu.Dispatcher) (*lcu.Credentials, error) {
	path, err := lcu.FindLockfile(cfg.LockfilePath)
	if err != nil {
		return nil, err
	}
	creds, err := lcu.ParseLockfile(path)
	if err != nil {
		return nil, err
	}

	client := lcu.NewClient(creds)
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	summonerID, err := client.CurrentSummonerID(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("[Assistant] Connected to client on port %s as summoner %d", creds.Port, summonerID)

	socket, err := lcu.DialSocket(creds, d)
	if err != nil {
		return nil, err
	}
	defer socket.Close()

	if err := socket.Listen(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[Assistant] Event socket closed: %v", err)
	}
	return creds, ctx.Err()
}

func printRecommendation(reg *champion.Registry, rec recommend.Recommendation) {
	for _, view := range rec.Views {
		log.Printf("[Assistant] Best swaps (%s):", view.Name)
		limit := 5
		if len(view.Suggestions) < limit {
			limit = len(view.Suggestions)
		}
		for i := 0; i < limit; i++ {
			s := view.Suggestions[i]
			log.Printf("[Assistant]   %d. %s (%.1f%% win)", i+1, describe(reg, s.Take), s.WinProbability*100)
		}
	}
}

func describe(reg *champion.Registry, take []int) string {
	if len(take) == 0 {
		return "keep current picks"
	}
	names := make([]string, len(take))
	for i, id := range take {
		name, err := reg.NameOf(id)
		if err != nil {
			name = fmt.Sprintf("champion %d", id)
		}
		names[i] = name
	}
	return strings.Join(names, " + ")
}
