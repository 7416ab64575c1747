// Package tui implements the hearth terminal dashboard: a live table of
// pending triggers with daemon health in the footer.
package tui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/hearthlabs/hearth/client"
	"github.com/hearthlabs/hearth/trigger"
)

const requestTimeout = 5 * time.Second

// TriggerService is the slice of the daemon client the dashboard needs.
// *client.Client satisfies it.
type TriggerService interface {
	ListTriggers(ctx context.Context, owner string) ([]*trigger.Trigger, error)
	CancelTrigger(ctx context.Context, id, owner string) error
	Health(ctx context.Context) (*client.HealthStatus, error)
}

// Watch is the pending-triggers dashboard application.
type Watch struct {
	app    *tview.Application
	table  *tview.Table
	status *tview.TextView

	svc      TriggerService
	interval time.Duration
	logger   zerolog.Logger

	// rows mirrors the table body so key handlers can map a selected row
	// back to a trigger.
	mu   sync.RWMutex
	rows []*trigger.Trigger

	done chan struct{}
}

// NewWatch creates the dashboard. interval is the auto-refresh cadence.
func NewWatch(svc TriggerService, interval time.Duration, logger zerolog.Logger) *Watch {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	w := &Watch{
		app:      tview.NewApplication(),
		table:    tview.NewTable(),
		status:   tview.NewTextView(),
		svc:      svc,
		interval: interval,
		logger:   logger.With().Str("component", "watch").Logger(),
		done:     make(chan struct{}),
	}
	w.setupUI()
	return w
}

func (w *Watch) setupUI() {
	w.table.SetBorder(true).SetTitle(" Pending Triggers (r: refresh, c: cancel selected, q: quit) ")
	w.table.SetSelectable(true, false)
	w.table.SetFixed(1, 0)

	w.status.SetDynamicColors(true)
	w.status.SetText("[gray]Loading...[white]")

	w.table.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyEsc:
			w.app.Stop()
			return nil
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				w.app.Stop()
				return nil
			case 'r', 'R':
				go w.refresh()
				return nil
			case 'c', 'C':
				w.cancelSelected()
				return nil
			}
		}
		return ev
	})
}

// Run starts the dashboard and blocks until the user quits.
func (w *Watch) Run() error {
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(w.table, 0, 1, true).
		AddItem(w.status, 1, 0, false)

	go w.refresh()
	go w.pollLoop()

	err := w.app.SetRoot(layout, true).Run()
	close(w.done)
	return err
}

// pollLoop drives the periodic refresh until the app stops.
func (w *Watch) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.refresh()
		}
	}
}

// refresh fetches triggers and health, then redraws. Safe to call from any
// goroutine.
func (w *Watch) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	triggers, err := w.svc.ListTriggers(ctx, "")
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to list triggers")
		w.app.QueueUpdateDraw(func() {
			w.status.SetText(fmt.Sprintf("[red]Error: %v[white]", err))
		})
		return
	}

	health, healthErr := w.svc.Health(ctx)

	w.app.QueueUpdateDraw(func() {
		w.mu.Lock()
		w.rows = triggers
		w.mu.Unlock()

		w.table.Clear()
		for col, name := range []string{"ID", "OWNER", "AGE", "CONDITION", "DESCRIPTION"} {
			w.table.SetCell(0, col, tview.NewTableCell(name).
				SetTextColor(tcell.ColorYellow).
				SetSelectable(false).
				SetExpansion(1))
		}
		for i, t := range triggers {
			age := time.Since(t.CreatedAt).Round(time.Second)
			w.table.SetCell(i+1, 0, tview.NewTableCell(t.ID))
			w.table.SetCell(i+1, 1, tview.NewTableCell(t.Owner))
			w.table.SetCell(i+1, 2, tview.NewTableCell(age.String()))
			w.table.SetCell(i+1, 3, tview.NewTableCell(t.Condition.Describe()))
			w.table.SetCell(i+1, 4, tview.NewTableCell(t.Description))
		}

		w.status.SetText(w.statusLine(len(triggers), health, healthErr))
	})
}

// statusLine renders the footer: daemon health plus the refresh time.
func (w *Watch) statusLine(pending int, health *client.HealthStatus, healthErr error) string {
	now := time.Now().Format("15:04:05")
	if healthErr != nil {
		return fmt.Sprintf("[red]daemon unreachable: %v[white] | %d pending | refreshed %s", healthErr, pending, now)
	}

	color := "green"
	if health.Status != "ok" {
		color = "red"
	}
	line := fmt.Sprintf("[%s]%s[white] | poller %s | store %s | %d pending | refreshed %s",
		color, health.Status, health.Poller.Phase, health.Store, pending, now)
	if health.Poller.LastCycle != nil {
		line += " | last cycle " + health.Poller.LastCycle.Local().Format("15:04:05")
	}
	return line
}

// cancelSelected cancels the trigger under the cursor on behalf of its
// owner, then refreshes.
func (w *Watch) cancelSelected() {
	row, _ := w.table.GetSelection()
	idx := row - 1 // header offset

	w.mu.RLock()
	var selected *trigger.Trigger
	if idx >= 0 && idx < len(w.rows) {
		selected = w.rows[idx]
	}
	w.mu.RUnlock()
	if selected == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := w.svc.CancelTrigger(ctx, selected.ID, selected.Owner)
		if err != nil {
			w.logger.Warn().Err(err).Str("trigger_id", selected.ID).Msg("Failed to cancel trigger")
			w.app.QueueUpdateDraw(func() {
				w.status.SetText(fmt.Sprintf("[red]Cancel failed: %v[white]", err))
			})
			return
		}
		w.refresh()
	}()
}
