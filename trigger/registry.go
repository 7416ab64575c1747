package trigger

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterRequest carries everything needed to create a trigger.
type RegisterRequest struct {
	Condition   Condition
	Action      json.RawMessage
	Owner       string
	Description string
	TTL         time.Duration // optional; 0 means the trigger never expires
}

// Registry owns trigger bookkeeping and evaluation. The store is the source
// of truth for trigger records; the registry additionally keeps the
// process-local last-seen device snapshot needed for edge detection.
//
// The last-seen cache starts empty on every process start, so edges that
// occurred before the first post-restart poll are not retroactively
// detected. That is a documented property of edge-triggered conditions,
// not something the registry tries to repair.
type Registry struct {
	store  Store
	logger zerolog.Logger

	mu       sync.RWMutex
	lastSeen States
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:    store,
		logger:   logger.With().Str("component", "registry").Logger(),
		lastSeen: make(States),
	}
}

// Register validates and persists a new pending trigger. Validation failures
// are returned synchronously and nothing is persisted.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*Trigger, error) {
	if err := req.Condition.Validate(); err != nil {
		return nil, err
	}
	if req.Owner == "" {
		return nil, NewValidationError("owner is required")
	}
	if len(req.Action) == 0 {
		return nil, NewValidationError("action payload is required")
	}
	if !json.Valid(req.Action) {
		return nil, NewValidationError("action payload must be valid JSON")
	}
	if req.TTL < 0 {
		return nil, NewValidationError("ttl must not be negative")
	}

	now := time.Now().UTC()
	t := &Trigger{
		ID:          uuid.NewString(),
		Owner:       req.Owner,
		Description: req.Description,
		Condition:   req.Condition,
		Action:      req.Action,
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if req.TTL > 0 {
		expires := now.Add(req.TTL)
		t.ExpiresAt = &expires
	}

	if err := r.store.Insert(ctx, t); err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("method", "Register").
		Str("trigger_id", t.ID).
		Str("owner", t.Owner).
		Str("condition", t.Condition.Describe()).
		Msg("Trigger registered")

	return t, nil
}

// Evaluate reports whether the trigger's condition is satisfied by the move
// from the registry's last-seen snapshot to cur. It reads shared state but
// mutates nothing; the caller folds cur in via ObserveStates once the whole
// cycle is evaluated, so every trigger in a cycle sees the same previous
// snapshot.
func (r *Registry) Evaluate(t *Trigger, cur States) (bool, error) {
	r.mu.RLock()
	prev := r.lastSeen
	r.mu.RUnlock()

	return t.Condition.Eval(cur, prev)
}

// ObserveStates folds a successful poll snapshot into the last-seen cache.
func (r *Registry) ObserveStates(cur States) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen.Merge(cur)
}

// Fire atomically transitions the trigger to fired and returns its action
// payload for dispatch. A concurrent fire or cancel loses the store
// compare-and-set and surfaces as AlreadyFired or Conflict.
func (r *Registry) Fire(ctx context.Context, id string) (json.RawMessage, error) {
	t, err := r.store.Transition(ctx, id, StatusFired, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Str("method", "Fire").
		Str("trigger_id", t.ID).
		Str("owner", t.Owner).
		Msg("Trigger fired")

	return t.Action, nil
}

// Cancel transitions a pending trigger to cancelled. Only the owner may
// cancel. The terminal status of a fire/cancel race is decided by whichever
// store transition commits first.
func (r *Registry) Cancel(ctx context.Context, id, owner string) error {
	t, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Owner != owner {
		return NewUnauthorizedError(id, owner)
	}

	if _, err := r.store.Transition(ctx, id, StatusCancelled, time.Time{}); err != nil {
		return err
	}

	r.logger.Info().
		Str("method", "Cancel").
		Str("trigger_id", id).
		Str("owner", owner).
		Msg("Trigger cancelled")

	return nil
}

// Expire retires a pending trigger whose TTL has passed. Used by the poll
// loop; races with fire and cancel the same way they race each other.
func (r *Registry) Expire(ctx context.Context, id string) error {
	if _, err := r.store.Transition(ctx, id, StatusExpired, time.Time{}); err != nil {
		return err
	}

	r.logger.Info().
		Str("method", "Expire").
		Str("trigger_id", id).
		Msg("Trigger expired")

	return nil
}

// ListPending returns pending triggers in registration order. An empty owner
// lists every user's pending triggers; the poll loop snapshots the full
// pending set this way at cycle start.
func (r *Registry) ListPending(ctx context.Context, owner string) ([]*Trigger, error) {
	return r.store.List(ctx, Filter{Owner: owner, Status: StatusPending})
}

// CancelAll cancels every pending trigger regardless of owner and returns
// how many were retired. Triggers that reach a terminal state mid-sweep are
// skipped. Serves the test-harness reset endpoint.
func (r *Registry) CancelAll(ctx context.Context) (int, error) {
	pending, err := r.store.List(ctx, Filter{Status: StatusPending})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, t := range pending {
		if _, err := r.store.Transition(ctx, t.ID, StatusCancelled, time.Time{}); err != nil {
			if IsAlreadyFiredError(err) || IsConflictError(err) || IsNotFoundError(err) {
				continue
			}
			return cancelled, err
		}
		cancelled++
	}

	r.logger.Info().
		Str("method", "CancelAll").
		Int("cancelled", cancelled).
		Msg("All pending triggers cancelled")

	return cancelled, nil
}
