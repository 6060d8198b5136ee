package sqlstore

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock sets the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxOpenConns caps the pool size. SQLite always uses a single connection.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithAutoMigrate applies pending migrations when the store is opened.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) {
		s.autoMigrate = enabled
	}
}
