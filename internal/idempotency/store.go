// Package idempotency guarantees at-most-once execution of the
// side-effecting turn dispatch per (tenant, session, client key).
//
// The store is the single point of mutual exclusion across concurrent
// duplicate requests: CheckOrReserve is atomic, so two requests with the
// same key can never both observe "not found" and both dispatch. Completed
// results are replayed byte-for-byte. Failures are never cached; a released
// or expired reservation makes the key re-executable.
package idempotency

import (
	"context"
	"errors"
)

// Key is the composite idempotency key.
type Key struct {
	Tenant  string
	Session string
	Client  string
}

// Reservation is the outcome of a CheckOrReserve call.
type Reservation int

const (
	// Found means a completed result is stored; the caller must return it
	// without re-executing.
	Found Reservation = iota

	// Reserved means the caller now owns execution and must eventually
	// call Complete (on success) or Release (on failure).
	Reserved

	// AlreadyReserved means another request with the same key is in
	// flight; the caller must not execute.
	AlreadyReserved
)

// ErrStoreUnavailable is returned when the backing store cannot be reached.
// Callers must fail the whole turn rather than skip the idempotency
// guarantee: silently skipping risks double-billing.
var ErrStoreUnavailable = errors.New("idempotency: store unavailable")

// Store is the idempotency store contract.
//
// For any fixed key, exactly one execution ever reaches Complete; concurrent
// duplicates converge on the single stored result. A reservation whose owner
// crashes before completing becomes re-reservable after the store's bounded
// grace period.
type Store interface {
	// CheckOrReserve atomically resolves the key. The returned payload is
	// non-nil only when the reservation state is Found.
	CheckOrReserve(ctx context.Context, key Key) (Reservation, []byte, error)

	// Complete stores the final result against a Reserved key. Calling it
	// twice with the same result is a no-op.
	Complete(ctx context.Context, key Key, result []byte) error

	// Release abandons a reservation after a failed dispatch so a retry
	// with the same key can re-attempt.
	Release(ctx context.Context, key Key) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
