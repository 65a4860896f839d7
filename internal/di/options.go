package di

import "time"

// LockTTL bounds how long a crashed sync can hold the lock
type LockTTL time.Duration

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithLockTTL overrides the default sync lock TTL
func WithLockTTL(ttl time.Duration) Option {
	return func(opts *options) {
		opts.lockTTL = LockTTL(ttl)
	}
}

// WithProviders adds constructor functions to the dependency injection container.
// Each provider should be a constructor function that returns one or more values.
// Providers can declare dependencies as function parameters, which will be
// automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	lockTTL   LockTTL
	providers []any
}
