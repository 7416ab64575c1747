package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/hearthlabs/hearth/devices"
	"github.com/hearthlabs/hearth/trigger"
)

// DefaultPollInterval is the poll cadence when none is configured.
const DefaultPollInterval = 10 * time.Second

// Phase is what the poller is doing right now.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePolling     Phase = "polling"
	PhaseDispatching Phase = "dispatching"
)

// Health is the poller's self-reported state for the health endpoint.
// LastCycle is nil until the first cycle completes.
type Health struct {
	Phase     Phase      `json:"phase"`
	LastCycle *time.Time `json:"last_cycle,omitempty"`
}

// Poller runs the evaluation loop: snapshot pending triggers, retire expired
// ones, fetch device state, evaluate, fire, dispatch. One goroutine, fixed
// interval, no backoff. A device-source outage skips the cycle and leaves
// every trigger pending for the next one.
type Poller struct {
	registry   *trigger.Registry
	source     devices.Source
	dispatcher *Dispatcher
	interval   time.Duration
	logger     zerolog.Logger

	mu        sync.RWMutex
	phase     Phase
	lastCycle time.Time
}

// NewPoller creates a Poller over the given registry, device source, and
// dispatcher.
func NewPoller(registry *trigger.Registry, source devices.Source, dispatcher *Dispatcher, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		registry:   registry,
		source:     source,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.With().Str("component", "poller").Logger(),
		phase:      PhaseIdle,
	}
}

// Start runs the poll loop until ctx is cancelled. The first cycle runs
// immediately, then one per tick.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped: context cancelled")
			return
		case <-ticker.C:
			p.runCycle(ctx)
		}
	}
}

// Health reports the current phase and last completed cycle time.
func (p *Poller) Health() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h := Health{Phase: p.phase}
	if !p.lastCycle.IsZero() {
		t := p.lastCycle
		h.LastCycle = &t
	}
	return h
}

func (p *Poller) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
}

// runCycle performs one evaluation cycle. Per-trigger failures are logged
// and isolated; only a pending-list or device-source failure aborts the
// whole cycle.
func (p *Poller) runCycle(ctx context.Context) {
	p.setPhase(PhasePolling)
	defer func() {
		p.mu.Lock()
		p.phase = PhaseIdle
		p.lastCycle = time.Now().UTC()
		p.mu.Unlock()
	}()

	// Triggers registered after this snapshot wait for the next cycle.
	pending, err := p.registry.ListPending(ctx, "")
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to list pending triggers, skipping cycle")
		return
	}

	live := p.retireExpired(ctx, pending)

	states, err := p.source.GetAllStates(ctx)
	if err != nil {
		// Outage: nothing fires, nothing is lost, the last-seen cache
		// keeps its previous snapshot.
		p.logger.Warn().Err(err).Msg("Device source unavailable, skipping cycle")
		return
	}

	satisfied := lo.Filter(live, func(t *trigger.Trigger, _ int) bool {
		ok, evalErr := p.registry.Evaluate(t, states)
		if evalErr != nil {
			p.logger.Error().Err(evalErr).Str("trigger_id", t.ID).Msg("Condition evaluation failed")
			return false
		}
		return ok
	})

	if len(satisfied) > 0 {
		p.setPhase(PhaseDispatching)
		for _, t := range satisfied {
			p.fireAndDispatch(ctx, t)
		}
	}

	p.registry.ObserveStates(states)

	p.logger.Debug().
		Int("pending", len(pending)).
		Int("fired", len(satisfied)).
		Msg("Cycle complete")
}

// retireExpired splits off triggers whose TTL has passed, transitioning each
// to expired, and returns the still-live remainder in registration order.
func (p *Poller) retireExpired(ctx context.Context, pending []*trigger.Trigger) []*trigger.Trigger {
	now := time.Now().UTC()
	live := make([]*trigger.Trigger, 0, len(pending))
	for _, t := range pending {
		if !t.Expired(now) {
			live = append(live, t)
			continue
		}
		if err := p.registry.Expire(ctx, t.ID); err != nil {
			if trigger.IsAlreadyFiredError(err) || trigger.IsConflictError(err) || trigger.IsNotFoundError(err) {
				p.logger.Debug().Str("trigger_id", t.ID).Msg("Trigger settled elsewhere during expiry")
				continue
			}
			p.logger.Error().Err(err).Str("trigger_id", t.ID).Msg("Failed to expire trigger")
		}
	}
	return live
}

// fireAndDispatch transitions one satisfied trigger to fired and hands its
// action to the dispatcher. A lost fire race is logged at debug and skipped.
func (p *Poller) fireAndDispatch(ctx context.Context, t *trigger.Trigger) {
	action, err := p.registry.Fire(ctx, t.ID)
	if err != nil {
		if trigger.IsAlreadyFiredError(err) || trigger.IsConflictError(err) {
			p.logger.Debug().Str("trigger_id", t.ID).Msg("Trigger already settled, skipping dispatch")
			return
		}
		p.logger.Error().Err(err).Str("trigger_id", t.ID).Msg("Failed to fire trigger")
		return
	}

	p.dispatcher.Enqueue(ctx, &Dispatch{
		TriggerID:   t.ID,
		Owner:       t.Owner,
		Description: t.Description,
		Action:      action,
		FiredAt:     time.Now().UTC(),
	})
}
