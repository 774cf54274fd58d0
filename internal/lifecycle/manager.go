// Package lifecycle keeps an entity's persisted trigger ids consistent with
// its schedule through every mutation: cancel old triggers first, compute
// the new occurrences, create new triggers, and hand the ids back to be
// persisted. The entity document is the single source of truth; the live
// trigger set is always rederivable from it, never the reverse.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/clock"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/delivery"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/schedule"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/trigger"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// ErrTriggerCreation marks a platform/permission failure while arming
// triggers. The entity survives it (persisted disabled with no ids); the
// caller surfaces it to the user as recoverable.
var ErrTriggerCreation = errors.New("lifecycle: trigger creation failed")

// channelGuard is the explicit initialization-once object for transport
// setup, owned by the manager rather than living as module state.
type channelGuard struct {
	once sync.Once
	err  error
}

func (g *channelGuard) ensure(ctx context.Context, sink delivery.Sink) error {
	g.once.Do(func() { g.err = sink.EnsureChannel(ctx) })
	return g.err
}

// Manager orchestrates cancel-then-create sequences against the trigger
// API so at most one live trigger set exists per entity per schedule
// version. The sequence is best-effort, not atomic across crashes, but
// idempotent: re-running it cancels nothing and recreates the same set.
type Manager struct {
	triggers trigger.API
	sink     delivery.Sink
	clock    clock.Clock
	log      logx.Logger
	channel  channelGuard
}

func New(triggers trigger.API, sink delivery.Sink, clk clock.Clock, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{triggers: triggers, sink: sink, clock: clk, log: log}
}

// planned is one trigger to arm.
type planned struct {
	at  time.Time
	rep trigger.Repeat
}

// Reschedule replaces the entity's live triggers with the set its current
// schedule calls for, mutating TriggerIDs (and Enabled on failure) in
// place. skipCurrent skips a still-pending occurrence today, used after an
// early completion so the just-credited cycle is not re-armed.
//
// Error cases: schedule.ErrPastSchedule (one-time instant already passed;
// nothing was armed) and ErrTriggerCreation (entity left disabled with no
// ids). In both cases the caller should still persist the entity.
func (m *Manager) Reschedule(ctx context.Context, e *model.Entity, skipCurrent bool) ([]string, error) {
	m.foldLegacyID(e)
	m.CancelTriggers(ctx, e)

	if !e.Enabled || e.IsDeleted() || (e.Completed && !e.Recurring) {
		return nil, nil
	}

	now := m.clock.Now()
	spec := schedule.FromEntity(e)
	plan, err := buildPlan(spec, now, skipCurrent)
	if err != nil {
		// Fail fast before any trigger is requested.
		return nil, err
	}
	if len(plan) == 0 {
		return nil, nil
	}

	if err := m.channel.ensure(ctx, m.sink); err != nil {
		return nil, m.failCreation(ctx, e, nil, err)
	}

	payload := payloadFor(e)
	created := make([]string, 0, len(plan))
	for _, p := range plan {
		id, err := m.triggers.Create(ctx, payload, p.at, p.rep)
		if err != nil {
			return nil, m.failCreation(ctx, e, created, err)
		}
		created = append(created, id)
	}

	e.TriggerIDs = created
	m.log.Debug("entity rescheduled",
		logx.String("entity_id", e.ID),
		logx.String("pattern", spec.Kind.String()),
		logx.Int("triggers", len(created)),
	)
	return created, nil
}

// CancelTriggers cancels every trigger id held by the entity and clears the
// collection. Best-effort by contract: cancellation errors are intentionally
// discarded, and cancelling an already-absent id is success.
func (m *Manager) CancelTriggers(ctx context.Context, e *model.Entity) {
	m.foldLegacyID(e)
	for _, id := range e.TriggerIDs {
		_ = m.triggers.Cancel(ctx, id)
	}
	e.TriggerIDs = nil
}

// foldLegacyID rewrites the deprecated single trigger id into the
// collection form the first time the manager touches the entity.
func (m *Manager) foldLegacyID(e *model.Entity) {
	if e.LegacyTriggerID == "" {
		return
	}
	if len(e.TriggerIDs) == 0 {
		e.TriggerIDs = []string{e.LegacyTriggerID}
	}
	e.LegacyTriggerID = ""
}

func (m *Manager) failCreation(ctx context.Context, e *model.Entity, created []string, cause error) error {
	for _, id := range created {
		_ = m.triggers.Cancel(ctx, id)
	}
	e.TriggerIDs = nil
	e.Enabled = false
	m.log.Warn("trigger creation failed; entity disabled",
		logx.String("entity_id", e.ID),
		logx.Err(cause),
	)
	return fmt.Errorf("%w: %v", ErrTriggerCreation, cause)
}

// buildPlan maps a schedule spec to the triggers that realize it. A weekly
// day set becomes one independent weekly trigger per day rather than one
// compound rule; that keeps cancellation trivial and avoids a recurrence
// DSL. A yearly schedule is armed as a one-time trigger and recreated when
// its cycle advances.
func buildPlan(s schedule.Spec, now time.Time, skipCurrent bool) ([]planned, error) {
	switch s.Kind {
	case schedule.Daily:
		if s.Time == nil {
			return nil, nil
		}
		return []planned{{at: schedule.NextDaily(*s.Time, now, skipCurrent), rep: trigger.RepeatDaily}}, nil
	case schedule.Weekly:
		if s.Time == nil {
			return nil, nil
		}
		plan := make([]planned, 0, len(s.Days))
		for _, day := range s.Days {
			plan = append(plan, planned{
				at:  schedule.NextWeekly(*s.Time, day, now, skipCurrent),
				rep: trigger.RepeatWeekly,
			})
		}
		return plan, nil
	case schedule.OneTime:
		at, err := schedule.OneTimeTimestamp(s.Time, s.Date, now)
		if err != nil {
			return nil, err
		}
		return []planned{{at: at, rep: trigger.RepeatNone}}, nil
	case schedule.Yearly:
		if s.Time == nil {
			// Date-only yearly: arm at midnight of the next occurrence.
			d := s.Date
			at := d.In(now.Location())
			for !at.After(now) {
				d = d.AddYears(1)
				at = d.In(now.Location())
			}
			return []planned{{at: at, rep: trigger.RepeatNone}}, nil
		}
		at, ok := schedule.NextCycle(s, now)
		if !ok {
			return nil, nil
		}
		return []planned{{at: at, rep: trigger.RepeatNone}}, nil
	default:
		return nil, nil
	}
}

func payloadFor(e *model.Entity) trigger.Payload {
	return trigger.Payload{
		EntityID: e.ID,
		Kind:     e.Kind,
		Title:    e.Text,
		Body:     e.Category,
	}
}
