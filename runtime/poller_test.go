package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/trigger"
)

// memStore is an in-memory trigger.Store with the same compare-and-set
// semantics the real backends provide.
type memStore struct {
	mu       sync.Mutex
	triggers map[string]*trigger.Trigger
	order    []string
}

func newMemStore() *memStore {
	return &memStore{triggers: make(map[string]*trigger.Trigger)}
}

func (s *memStore) Insert(_ context.Context, t *trigger.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.triggers[t.ID] = &cp
	s.order = append(s.order, t.ID)
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*trigger.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	if !ok {
		return nil, trigger.NewNotFoundError(id)
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) List(_ context.Context, f trigger.Filter) ([]*trigger.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*trigger.Trigger
	for _, id := range s.order {
		t := s.triggers[id]
		if f.Owner != "" && t.Owner != f.Owner {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) Transition(_ context.Context, id string, to trigger.Status, firedAt time.Time) (*trigger.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.triggers[id]
	if !ok {
		return nil, trigger.NewNotFoundError(id)
	}
	if t.Status != trigger.StatusPending {
		return nil, trigger.NewStatusConflictError(id, t.Status)
	}
	t.Status = to
	if to == trigger.StatusFired {
		at := firedAt
		t.FiredAt = &at
	}
	cp := *t
	return &cp, nil
}

// fakeSource is a scriptable device source. Setting err simulates an outage.
type fakeSource struct {
	mu     sync.Mutex
	states trigger.States
	err    error
	calls  int
}

func (s *fakeSource) GetAllStates(_ context.Context) (trigger.States, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.states.Clone(), nil
}

func (s *fakeSource) GetState(_ context.Context, device, attribute string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.states.Lookup(device, attribute)
	if !ok {
		return "", errors.New("unknown device attribute")
	}
	return v, nil
}

func (s *fakeSource) set(states trigger.States) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = states
	s.err = nil
}

func (s *fakeSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func newTestPoller() (*Poller, *trigger.Registry, *memStore, *fakeSource, *Dispatcher) {
	store := newMemStore()
	registry := trigger.NewRegistry(store, zerolog.Nop())
	source := &fakeSource{states: trigger.States{}}
	dispatcher := NewDispatcher(8, false, nil, zerolog.Nop())
	poller := NewPoller(registry, source, dispatcher, time.Second, zerolog.Nop())
	return poller, registry, store, source, dispatcher
}

func registerDoorEdge(t *testing.T, r *trigger.Registry, owner string) *trigger.Trigger {
	t.Helper()
	trig, err := r.Register(context.Background(), trigger.RegisterRequest{
		Condition: trigger.Condition{
			Type:      trigger.ConditionAttributeTransition,
			Device:    "fridge",
			Attribute: "door",
			From:      "closed",
			To:        "open",
		},
		Action: json.RawMessage(`{"command":"turn on the dining room light"}`),
		Owner:  owner,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return trig
}

func TestPollerFiresEdgeOnce(t *testing.T) {
	poller, registry, store, source, dispatcher := newTestPoller()
	ctx := context.Background()

	trig := registerDoorEdge(t, registry, "amal")

	// Cycle 1: door closed, baseline observation only.
	source.set(trigger.States{"fridge": {"door": "closed"}})
	poller.runCycle(ctx)
	if dispatcher.Len() != 0 {
		t.Fatal("closed door must not dispatch anything")
	}

	// Cycle 2: door opened since last cycle.
	source.set(trigger.States{"fridge": {"door": "open"}})
	poller.runCycle(ctx)

	disp := dispatcher.Next()
	if disp == nil {
		t.Fatal("closed -> open edge should have dispatched")
	}
	if disp.TriggerID != trig.ID || disp.Owner != "amal" {
		t.Errorf("dispatch carries wrong identity: %+v", disp)
	}
	if string(disp.Action) != `{"command":"turn on the dining room light"}` {
		t.Errorf("dispatch carries wrong action: %s", disp.Action)
	}
	if disp.FiredAt.IsZero() {
		t.Error("dispatch should carry a fired_at timestamp")
	}

	stored, _ := store.Get(ctx, trig.ID)
	if stored.Status != trigger.StatusFired {
		t.Fatalf("trigger should be fired, got %s", stored.Status)
	}

	// Cycle 3: door stays open; the fired trigger is out of the pending
	// set and nothing new dispatches.
	poller.runCycle(ctx)
	if dispatcher.Len() != 0 {
		t.Error("steady open state must not dispatch again")
	}
}

func TestPollerColdStartNeedsBaseline(t *testing.T) {
	poller, registry, _, source, dispatcher := newTestPoller()
	ctx := context.Background()

	registerDoorEdge(t, registry, "amal")

	// First cycle ever and the door is already open. Without a previous
	// observation there is no edge, only a baseline.
	source.set(trigger.States{"fridge": {"door": "open"}})
	poller.runCycle(ctx)
	if dispatcher.Len() != 0 {
		t.Fatal("first observation must not count as a transition")
	}

	// Still open: no edge either.
	poller.runCycle(ctx)
	if dispatcher.Len() != 0 {
		t.Fatal("steady state after baseline must not fire")
	}

	// Close, then reopen: now there is a real edge.
	source.set(trigger.States{"fridge": {"door": "closed"}})
	poller.runCycle(ctx)
	source.set(trigger.States{"fridge": {"door": "open"}})
	poller.runCycle(ctx)
	if dispatcher.Len() != 1 {
		t.Fatalf("expected exactly one dispatch after a real edge, got %d", dispatcher.Len())
	}
}

func TestPollerOutageSkipsCycle(t *testing.T) {
	poller, registry, store, source, dispatcher := newTestPoller()
	ctx := context.Background()

	trig := registerDoorEdge(t, registry, "amal")

	source.set(trigger.States{"fridge": {"door": "closed"}})
	poller.runCycle(ctx)

	// Outage cycle: nothing fires, the trigger stays pending.
	source.setErr(errors.New("connection refused"))
	poller.runCycle(ctx)
	if dispatcher.Len() != 0 {
		t.Fatal("outage cycle must not dispatch")
	}
	stored, _ := store.Get(ctx, trig.ID)
	if stored.Status != trigger.StatusPending {
		t.Fatalf("outage must leave the trigger pending, got %s", stored.Status)
	}

	// The door opened during the outage. The next healthy cycle sees the
	// edge against the pre-outage baseline and fires.
	source.set(trigger.States{"fridge": {"door": "open"}})
	poller.runCycle(ctx)
	if dispatcher.Len() != 1 {
		t.Fatalf("post-outage cycle should fire, queue depth %d", dispatcher.Len())
	}
}

func TestPollerExpiresTriggers(t *testing.T) {
	poller, _, store, source, dispatcher := newTestPoller()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	expired := &trigger.Trigger{
		ID:     "stale-1",
		Owner:  "amal",
		Condition: trigger.Condition{
			Type:      trigger.ConditionAttributeEquals,
			Device:    "tv",
			Attribute: "power",
			Value:     "on",
		},
		Action:    json.RawMessage(`{"command":"mute the tv"}`),
		Status:    trigger.StatusPending,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: &past,
	}
	if err := store.Insert(ctx, expired); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// The condition would be satisfied, but expiry wins: the trigger is
	// retired before evaluation.
	source.set(trigger.States{"tv": {"power": "on"}})
	poller.runCycle(ctx)

	stored, _ := store.Get(ctx, "stale-1")
	if stored.Status != trigger.StatusExpired {
		t.Fatalf("expected expired, got %s", stored.Status)
	}
	if dispatcher.Len() != 0 {
		t.Error("expired trigger must never dispatch")
	}
}

func TestPollerExpiryRunsDuringOutage(t *testing.T) {
	poller, _, store, source, _ := newTestPoller()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	expired := &trigger.Trigger{
		ID:        "stale-2",
		Owner:     "dmitri",
		Condition: trigger.Condition{Type: trigger.ConditionAttributeEquals, Device: "tv", Attribute: "power", Value: "on"},
		Action:    json.RawMessage(`{}`),
		Status:    trigger.StatusPending,
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: &past,
	}
	if err := store.Insert(ctx, expired); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Expiry is bookkeeping, not evaluation; it happens even when the
	// device source is down.
	source.setErr(errors.New("connection refused"))
	poller.runCycle(ctx)

	stored, _ := store.Get(ctx, "stale-2")
	if stored.Status != trigger.StatusExpired {
		t.Fatalf("expected expired despite outage, got %s", stored.Status)
	}
}

func TestPollerFiresInRegistrationOrder(t *testing.T) {
	poller, registry, _, source, dispatcher := newTestPoller()
	ctx := context.Background()

	equals := func(device string) trigger.Condition {
		return trigger.Condition{Type: trigger.ConditionAttributeEquals, Device: device, Attribute: "power", Value: "on"}
	}

	first, err := registry.Register(ctx, trigger.RegisterRequest{Condition: equals("tv"), Action: json.RawMessage(`{}`), Owner: "amal"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := registry.Register(ctx, trigger.RegisterRequest{Condition: equals("lamp"), Action: json.RawMessage(`{}`), Owner: "dmitri"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Both satisfied in the same cycle; dispatch order follows
	// registration order.
	source.set(trigger.States{"tv": {"power": "on"}, "lamp": {"power": "on"}})
	poller.runCycle(ctx)

	if got := dispatcher.Next(); got == nil || got.TriggerID != first.ID {
		t.Fatalf("first dispatch should be the first registration, got %+v", got)
	}
	if got := dispatcher.Next(); got == nil || got.TriggerID != second.ID {
		t.Fatalf("second dispatch should be the second registration, got %+v", got)
	}
}

func TestPollerHealth(t *testing.T) {
	poller, _, _, source, _ := newTestPoller()
	ctx := context.Background()

	h := poller.Health()
	if h.Phase != PhaseIdle {
		t.Errorf("expected idle before any cycle, got %s", h.Phase)
	}
	if h.LastCycle != nil {
		t.Error("last cycle should be unset before any cycle")
	}

	source.set(trigger.States{})
	poller.runCycle(ctx)

	h = poller.Health()
	if h.Phase != PhaseIdle {
		t.Errorf("expected idle after cycle, got %s", h.Phase)
	}
	if h.LastCycle == nil {
		t.Fatal("last cycle should be recorded after a cycle")
	}
	if time.Since(*h.LastCycle) > time.Minute {
		t.Errorf("last cycle timestamp is stale: %v", h.LastCycle)
	}
}

func TestPollerStartStopsOnCancel(t *testing.T) {
	poller, _, _, source, _ := newTestPoller()
	source.set(trigger.States{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	// The first cycle runs immediately; wait for it, then cancel.
	deadline := time.After(2 * time.Second)
	for poller.Health().LastCycle == nil {
		select {
		case <-deadline:
			t.Fatal("initial cycle never completed")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on context cancellation")
	}
}
