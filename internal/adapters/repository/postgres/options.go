package postgres

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithMaxConns caps the pool size.
func WithMaxConns(n int32) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithClock sets the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAutoMigrate applies pending migrations on Connect.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) {
		s.autoMigrate = enabled
	}
}
