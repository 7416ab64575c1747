package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeForwarder struct {
	err   error
	calls []json.RawMessage
}

func (f *fakeForwarder) Forward(_ context.Context, action json.RawMessage) error {
	f.calls = append(f.calls, action)
	return f.err
}

func (f *fakeForwarder) Close() error { return nil }

func testDispatch(i int) *Dispatch {
	return &Dispatch{
		TriggerID: fmt.Sprintf("trig-%d", i),
		Owner:     "amal",
		Action:    json.RawMessage(`{"command":"notify"}`),
		FiredAt:   time.Now().UTC(),
	}
}

func TestDispatcherDrainsOldestFirst(t *testing.T) {
	d := NewDispatcher(8, false, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.Enqueue(ctx, testDispatch(i))
	}
	if d.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", d.Len())
	}

	for i := 0; i < 3; i++ {
		disp := d.Next()
		if disp == nil {
			t.Fatalf("queue empty after %d drains", i)
		}
		if want := fmt.Sprintf("trig-%d", i); disp.TriggerID != want {
			t.Errorf("drain %d: expected %s, got %s", i, want, disp.TriggerID)
		}
	}

	if disp := d.Next(); disp != nil {
		t.Errorf("drained queue should yield nil, got %+v", disp)
	}
}

func TestDispatcherOverflowDropsOldest(t *testing.T) {
	d := NewDispatcher(2, false, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.Enqueue(ctx, testDispatch(i))
	}

	if d.Len() != 2 {
		t.Fatalf("expected queue pinned at capacity 2, got %d", d.Len())
	}
	if disp := d.Next(); disp.TriggerID != "trig-1" {
		t.Errorf("oldest surviving dispatch should be trig-1, got %s", disp.TriggerID)
	}
	if disp := d.Next(); disp.TriggerID != "trig-2" {
		t.Errorf("newest dispatch should be trig-2, got %s", disp.TriggerID)
	}
}

func TestDispatcherReset(t *testing.T) {
	d := NewDispatcher(8, false, nil, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		d.Enqueue(ctx, testDispatch(i))
	}

	if n := d.Reset(); n != 4 {
		t.Errorf("reset should report 4 dropped, got %d", n)
	}
	if d.Len() != 0 {
		t.Errorf("queue should be empty after reset, got %d", d.Len())
	}
	if n := d.Reset(); n != 0 {
		t.Errorf("second reset should report 0, got %d", n)
	}
}

func TestDispatcherForwarderFailureIsolated(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("mcp server is down")}
	d := NewDispatcher(8, false, fwd, zerolog.Nop())
	ctx := context.Background()

	d.Enqueue(ctx, testDispatch(0))

	// The forwarder was invoked and failed, but the dispatch is queued
	// regardless.
	if len(fwd.calls) != 1 {
		t.Fatalf("expected 1 forward attempt, got %d", len(fwd.calls))
	}
	if d.Len() != 1 {
		t.Fatal("forwarder failure must not lose the dispatch")
	}
	if disp := d.Next(); disp == nil || disp.TriggerID != "trig-0" {
		t.Errorf("queued dispatch should survive forwarder failure, got %+v", disp)
	}
}

func TestDispatcherForwarderReceivesAction(t *testing.T) {
	fwd := &fakeForwarder{}
	d := NewDispatcher(8, false, fwd, zerolog.Nop())

	disp := testDispatch(0)
	disp.Action = json.RawMessage(`{"command":"turn on the dining room light"}`)
	d.Enqueue(context.Background(), disp)

	if len(fwd.calls) != 1 {
		t.Fatalf("expected 1 forward, got %d", len(fwd.calls))
	}
	if string(fwd.calls[0]) != `{"command":"turn on the dining room light"}` {
		t.Errorf("forwarder received wrong payload: %s", fwd.calls[0])
	}
}
