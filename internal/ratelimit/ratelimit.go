// Package ratelimit holds the fixed-window limiter used by the quote endpoint.
// Stores are injected into the HTTP middleware so the process-local map can be
// swapped for a shared backend when the service runs on more than one instance.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMaxRequests   = 5
	DefaultWindow        = time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// RetryAfter returns the time left in the current window relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.After(now) {
		return d.ResetAt.Sub(now)
	}
	return 0
}

// Store performs an atomic check-and-increment for a client key.
type Store interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Entry is the window state kept per client key.
type Entry struct {
	Key     string    `json:"key"`
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Inspector exposes stored window state for admin tooling.
type Inspector interface {
	Entries(ctx context.Context) ([]Entry, error)
	Reset(ctx context.Context, key string) (bool, error)
}

// Options configures a store.
type Options struct {
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
	KeyPrefix     string // redis only
	Clock         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRequests <= 0 {
		o.MaxRequests = DefaultMaxRequests
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = "rl:quote:"
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
