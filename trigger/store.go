package trigger

import (
	"context"
	"time"
)

// Filter narrows a trigger listing. Zero values match everything.
type Filter struct {
	Owner  string
	Status Status
}

// Store is the durable trigger record contract. Implementations must keep
// Transition atomic per trigger; it is the compare-and-set that resolves the
// fire/cancel race.
type Store interface {
	// Insert persists a new trigger.
	Insert(ctx context.Context, t *Trigger) error

	// Get returns the trigger by id, or a NotFound error.
	Get(ctx context.Context, id string) (*Trigger, error)

	// List returns triggers matching the filter in registration order
	// (created_at, then id).
	List(ctx context.Context, f Filter) ([]*Trigger, error)

	// Transition atomically moves a pending trigger to the given terminal
	// status and returns the updated record. When to is StatusFired the
	// firedAt timestamp is stamped. A trigger that is no longer pending
	// yields an AlreadyFired or Conflict error; an unknown id yields
	// NotFound.
	Transition(ctx context.Context, id string, to Status, firedAt time.Time) (*Trigger, error)
}
