package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/wordfall/leaderboard/internal/testsessions"
	"github.com/wordfall/leaderboard/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumSessions = 100
	defaultMaxStage    = 8
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numSessions = flag.Int("sessions", defaultNumSessions, "Number of sessions to generate and submit")
		workers     = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		maxStage    = flag.Int("max-stage", defaultMaxStage, "Upper bound for generated stage numbers")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &testsessions.Config{
		BaseURL:     *baseURL,
		NumSessions: *numSessions,
		Workers:     *workers,
		Timeout:     *timeout,
		MaxStage:    *maxStage,
		Verbose:     *verbose,
	}

	if err := testsessions.Run(ctx, config); err != nil {
		os.Stderr.WriteString("run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
