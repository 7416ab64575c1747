// Package runtime drives the trigger server: the fixed-interval poll loop
// that evaluates pending triggers, the dispatcher that fans out fired
// actions, and the scheduled profile refresh job.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the dispatch queue capacity when none is configured.
const DefaultQueueSize = 256

// Dispatch is one fired action awaiting delivery. Queued dispatches are
// process-local; the fired trigger row in the store is the durable record.
type Dispatch struct {
	TriggerID   string          `json:"trigger_id"`
	Owner       string          `json:"owner"`
	Description string          `json:"description,omitempty"`
	Action      json.RawMessage `json:"action"`
	FiredAt     time.Time       `json:"fired_at"`
}

// ActionForwarder hands a fired action payload to an external executor.
type ActionForwarder interface {
	Forward(ctx context.Context, action json.RawMessage) error
	Close() error
}

// Dispatcher fans out fired triggers: every dispatch lands in a bounded FIFO
// queue drained one at a time by the coordinator, and optionally also goes to
// a desktop notification and an MCP tool. The side channels are best-effort;
// their failures are logged and never reach the poll loop.
type Dispatcher struct {
	capacity  int
	notify    bool
	forwarder ActionForwarder
	logger    zerolog.Logger

	mu    sync.Mutex
	queue []*Dispatch
}

// NewDispatcher creates a Dispatcher with the given queue capacity. A nil
// forwarder disables MCP forwarding; notify false disables desktop
// notifications.
func NewDispatcher(capacity int, notify bool, forwarder ActionForwarder, logger zerolog.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Dispatcher{
		capacity:  capacity,
		notify:    notify,
		forwarder: forwarder,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Enqueue records a dispatch and runs the optional side channels. When the
// queue is full the oldest dispatch is dropped to make room.
func (d *Dispatcher) Enqueue(ctx context.Context, disp *Dispatch) {
	d.mu.Lock()
	if len(d.queue) >= d.capacity {
		dropped := d.queue[0]
		d.queue = d.queue[1:]
		d.logger.Warn().
			Str("trigger_id", dropped.TriggerID).
			Str("owner", dropped.Owner).
			Msg("Dispatch queue full, dropping oldest")
	}
	d.queue = append(d.queue, disp)
	depth := len(d.queue)
	d.mu.Unlock()

	d.logger.Info().
		Str("method", "Enqueue").
		Str("trigger_id", disp.TriggerID).
		Str("owner", disp.Owner).
		Int("queue_depth", depth).
		Msg("Dispatch enqueued")

	if d.notify {
		d.sendNotification(disp)
	}
	if d.forwarder != nil {
		d.forward(ctx, disp)
	}
}

// Next pops the oldest queued dispatch, or nil when the queue is empty.
func (d *Dispatcher) Next() *Dispatch {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return nil
	}
	disp := d.queue[0]
	d.queue = d.queue[1:]
	return disp
}

// Len returns the number of queued dispatches.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Reset drops every queued dispatch and returns how many were dropped.
func (d *Dispatcher) Reset() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.queue)
	d.queue = nil
	return n
}

func (d *Dispatcher) sendNotification(disp *Dispatch) {
	body := disp.Description
	if body == "" {
		body = fmt.Sprintf("Trigger %s fired for %s", disp.TriggerID, disp.Owner)
	}

	if err := beeep.Notify("Hearth trigger fired", body, ""); err != nil {
		// Common on headless hosts or when notification permissions are off.
		d.logger.Warn().
			Err(err).
			Str("trigger_id", disp.TriggerID).
			Msg("Failed to send desktop notification")
		return
	}

	d.logger.Debug().
		Str("trigger_id", disp.TriggerID).
		Msg("Desktop notification sent")
}

func (d *Dispatcher) forward(ctx context.Context, disp *Dispatch) {
	if err := d.forwarder.Forward(ctx, disp.Action); err != nil {
		d.logger.Warn().
			Err(err).
			Str("trigger_id", disp.TriggerID).
			Msg("Failed to forward action to MCP server")
		return
	}

	d.logger.Debug().
		Str("trigger_id", disp.TriggerID).
		Msg("Action forwarded to MCP server")
}
