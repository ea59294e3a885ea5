package testsessions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/wordfall/leaderboard/pkg/logger"
)

// Run generates the configured number of sessions and submits them
// concurrently, then fetches the leaderboard for a summary.
func Run(ctx context.Context, config *Config) error {
	log := logger.Get()
	stats := &Stats{}

	log.Info(ctx, "generating sessions", logger.Int("count", config.NumSessions))
	sessions, err := GenerateBatch(config.NumSessions, config.MaxStage)
	if err != nil {
		return fmt.Errorf("generate sessions: %w", err)
	}
	stats.SessionsGenerated = len(sessions)

	if err := submitSessions(ctx, config, sessions, stats); err != nil {
		return err
	}

	log.Info(ctx, "run complete",
		logger.Int("generated", stats.SessionsGenerated),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed),
	)
	return nil
}

// submitSessions posts sessions through a bounded worker pool.
func submitSessions(ctx context.Context, config *Config, sessions []GeneratedSession, stats *Stats) error {
	client := &http.Client{Timeout: config.Timeout}
	url := config.BaseURL + "/api/scores"

	var (
		accepted    int64
		duplicate   int64
		rateLimited int64
		failed      int64
	)

	jobs := make(chan GeneratedSession, config.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				switch submitOne(ctx, client, url, s) {
				case http.StatusAccepted:
					atomic.AddInt64(&accepted, 1)
				case http.StatusConflict:
					atomic.AddInt64(&duplicate, 1)
				case http.StatusTooManyRequests:
					atomic.AddInt64(&rateLimited, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range sessions {
			select {
			case <-ctx.Done():
				return
			case jobs <- s:
			}
		}
	}()
	wg.Wait()

	stats.SessionsSubmitted = len(sessions)
	stats.Accepted = int(atomic.LoadInt64(&accepted))
	stats.Duplicate = int(atomic.LoadInt64(&duplicate))
	stats.RateLimited = int(atomic.LoadInt64(&rateLimited))
	stats.Failed = int(atomic.LoadInt64(&failed))
	return nil
}

// submitOne posts one session and returns the response status code, or
// zero on transport failure.
func submitOne(ctx context.Context, client *http.Client, url string, s GeneratedSession) int {
	buf, err := json.Marshal(s)
	if err != nil {
		return 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	return resp.StatusCode
}
