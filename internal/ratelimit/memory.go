package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caleslawncare/quote-gateway/internal/metrics"
)

// MemoryStore keeps windows in a process-local map. Counters are lost on
// restart and are not shared between instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	opts    Options
	logger  *zap.Logger
	stopCh  chan struct{}
	once    sync.Once
}

var _ Store = (*MemoryStore)(nil)
var _ Inspector = (*MemoryStore)(nil)

// NewMemoryStore creates the store and starts its background sweep.
func NewMemoryStore(opts Options, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		opts:    opts.withDefaults(),
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	go s.startSweepTask()

	return s
}

// Allow starts a new window when the key is unknown or its window has
// elapsed, rejects once the window holds MaxRequests, and counts otherwise.
func (s *MemoryStore) Allow(_ context.Context, key string) (Decision, error) {
	now := s.opts.Clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.ResetAt) {
		e = &Entry{Key: key, Count: 1, ResetAt: now.Add(s.opts.Window)}
		s.entries[key] = e
		metrics.RateLimitEntries.Set(float64(len(s.entries)))
		return Decision{Allowed: true, Count: e.Count, ResetAt: e.ResetAt}, nil
	}

	if e.Count >= s.opts.MaxRequests {
		return Decision{Allowed: false, Count: e.Count, ResetAt: e.ResetAt}, nil
	}

	e.Count++
	return Decision{Allowed: true, Count: e.Count, ResetAt: e.ResetAt}, nil
}

// Sweep deletes entries whose window ended before now and returns how many
// were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.After(e.ResetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	metrics.RateLimitEntries.Set(float64(len(s.entries)))
	return removed
}

// Entries returns a snapshot sorted by key.
func (s *MemoryStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Reset forgets the window for key.
func (s *MemoryStore) Reset(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	metrics.RateLimitEntries.Set(float64(len(s.entries)))
	return ok, nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) startSweepTask() {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(s.opts.Clock()); n > 0 {
				s.logger.Debug("swept expired rate limit entries", zap.Int("removed", n))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop ends the background sweep. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.stopCh) })
}
