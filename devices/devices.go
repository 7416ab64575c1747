// Package devices reads smart home device state. Sources are read-mostly:
// the poll loop asks for a full snapshot once per cycle and treats any
// failure as an outage for that cycle, so sources keep their own retry
// behavior short and bounded.
package devices

import (
	"context"

	"github.com/hearthlabs/hearth/trigger"
)

// Source answers device state questions.
type Source interface {
	// GetState returns the current value of one attribute.
	GetState(ctx context.Context, device, attribute string) (string, error)
	// GetAllStates returns a snapshot of every known device.
	GetAllStates(ctx context.Context) (trigger.States, error)
}
