package store

import "time"

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithSweepInterval sets the janitor interval for expired-key removal.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *MemStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithMemClock overrides the time source, for tests.
func WithMemClock(now func() time.Time) Option {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}
