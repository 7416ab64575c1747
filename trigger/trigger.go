// Package trigger implements condition/action bookkeeping for deferred
// smart-home commands: a registered trigger waits in the store until the
// poll loop observes its condition and fires it, exactly once.
package trigger

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a trigger. A trigger makes exactly one
// transition out of pending and then never changes again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusFired || s == StatusCancelled || s == StatusExpired
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusFired, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Trigger is a registered (condition, action) pair awaiting a device-state
// event. The action payload is opaque; it is handed back verbatim on fire.
type Trigger struct {
	ID          string          `json:"id"`
	Owner       string          `json:"owner"`
	Description string          `json:"description,omitempty"`
	Condition   Condition       `json:"condition"`
	Action      json.RawMessage `json:"action"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	FiredAt     *time.Time      `json:"fired_at,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// Expired reports whether the trigger has a TTL that passed before now.
func (t *Trigger) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// States is a snapshot of device state: device id to attribute to value.
// Values are compared as strings; the device source normalizes them.
type States map[string]map[string]string

// Lookup returns the value of a device attribute and whether it is present.
func (s States) Lookup(device, attribute string) (string, bool) {
	attrs, ok := s[device]
	if !ok {
		return "", false
	}
	v, ok := attrs[attribute]
	return v, ok
}

// Clone returns a deep copy of the snapshot.
func (s States) Clone() States {
	out := make(States, len(s))
	for device, attrs := range s {
		copied := make(map[string]string, len(attrs))
		for k, v := range attrs {
			copied[k] = v
		}
		out[device] = copied
	}
	return out
}

// Merge folds other into s, attribute by attribute. Devices absent from
// other keep their previous values, so a partial snapshot never erases
// known state.
func (s States) Merge(other States) {
	for device, attrs := range other {
		if s[device] == nil {
			s[device] = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			s[device][k] = v
		}
	}
}
