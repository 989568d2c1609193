package idempotency

import (
	"context"
	"sync"
	"time"
)

type entryState int

const (
	statePending entryState = iota
	stateDone
)

type memEntry struct {
	state      entryState
	result     []byte
	reservedAt time.Time
}

// MemoryStore implements Store in process memory. Single-node only; the
// mutex provides the atomic check-and-reserve that SETNX provides in the
// Redis store.
type MemoryStore struct {
	mu             sync.Mutex
	entries        map[Key]*memEntry
	reservationTTL time.Duration

	// now is injectable for reservation-expiry tests.
	now func() time.Time
}

// NewMemoryStore creates an in-memory store with the given reservation
// grace period (default 30s when non-positive).
func NewMemoryStore(reservationTTL time.Duration) *MemoryStore {
	if reservationTTL <= 0 {
		reservationTTL = 30 * time.Second
	}
	return &MemoryStore{
		entries:        make(map[Key]*memEntry),
		reservationTTL: reservationTTL,
		now:            time.Now,
	}
}

// CheckOrReserve resolves the key under the store lock.
func (s *MemoryStore) CheckOrReserve(ctx context.Context, key Key) (Reservation, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if ok {
		switch e.state {
		case stateDone:
			result := make([]byte, len(e.result))
			copy(result, e.result)
			return Found, result, nil
		case statePending:
			// An expired reservation means its owner crashed or was
			// cancelled; the key becomes re-reservable.
			if s.now().Sub(e.reservedAt) < s.reservationTTL {
				return AlreadyReserved, nil, nil
			}
		}
	}

	s.entries[key] = &memEntry{state: statePending, reservedAt: s.now()}
	return Reserved, nil, nil
}

// Complete stores the result against the reservation.
func (s *MemoryStore) Complete(ctx context.Context, key Key, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(result))
	copy(stored, result)
	s.entries[key] = &memEntry{state: stateDone, result: stored}
	return nil
}

// Release abandons the reservation so the key can be retried.
func (s *MemoryStore) Release(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.state == statePending {
		delete(s.entries, key)
	}
	return nil
}

// Sweep removes expired pending reservations. Called periodically by the
// retention scheduler; CheckOrReserve also handles expiry on read, so the
// sweep only bounds memory growth.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.state == statePending && s.now().Sub(e.reservedAt) >= s.reservationTTL {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
