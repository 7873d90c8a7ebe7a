package speedlimit

import (
	"sync"
	"time"
)

// Store holds the one authoritative Snapshot for a process. Exactly one
// producer (the frame loop driving a Machine) writes; any number of request
// handlers read concurrently. Every snapshot handed out is an independent
// copy, so a reader can never mutate store internals through a return value.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot

	now                  func() time.Time
	respectTimeCondition bool
}

// StoreOption customizes a Store at construction.
type StoreOption func(*Store)

// WithClock injects the time source used for LastUpdated stamps, confirmation
// timestamps and time-condition evaluation. Tests use this for determinism.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithTimeConditionFiltering controls whether EffectiveLimit honors time
// conditions. Enabled by default; disabling makes EffectiveLimit report the
// confirmed value regardless of the clock.
func WithTimeConditionFiltering(enabled bool) StoreOption {
	return func(s *Store) { s.respectTimeCondition = enabled }
}

// NewStore creates an empty store. It is intended to be constructed once at
// process start and injected into the producer and every consumer.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		now:                  time.Now,
		respectTimeCondition: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap = Snapshot{Status: StatusNoDetection, LastUpdated: s.now()}
	return s
}

// Write replaces the authoritative snapshot atomically and stamps
// LastUpdated. Never observed partially applied by a concurrent Read.
func (s *Store) Write(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.LastUpdated = s.now()
	s.snap = snap.clone()
}

// Read returns an independent copy of the current snapshot.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// EffectiveLimit returns the confirmed speed limit iff one exists and its
// time condition (if any) is active right now. A "30 only 07:00-19:00" sign
// outside its window reports no active restriction even though it remains
// the confirmed sign.
func (s *Store) EffectiveLimit() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.snap.Confirmed
	if c == nil {
		return 0, false
	}
	if s.respectTimeCondition && c.TimeCondition != nil && !c.TimeCondition.IsActive(s.now()) {
		return 0, false
	}
	return c.SpeedLimit, true
}

// Response renders the current snapshot for transport using the store's
// clock and its time-condition policy. Consumers serving wire responses go
// through here rather than Snapshot.Response so the
// WithTimeConditionFiltering option applies to the rendered effective value
// exactly as it does to EffectiveLimit.
func (s *Store) Response() StateResponse {
	s.mu.RLock()
	snap := s.snap.clone()
	respect := s.respectTimeCondition
	s.mu.RUnlock()
	return snap.response(s.now(), respect)
}

// Reset restores the initial empty snapshot.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = Snapshot{Status: StatusNoDetection, LastUpdated: s.now()}
}

// Now returns the store's clock reading. Exposed so collaborators that build
// responses or compare snapshots share the injected time source.
func (s *Store) Now() time.Time {
	return s.now()
}
