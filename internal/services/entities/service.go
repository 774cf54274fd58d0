// Package entities is the store adapter for one entity kind: CRUD with
// soft-delete and purge, self-healing schema migration on load, and the
// completion operations that advance recurring schedules. Every mutation
// reads the full current array, applies one change, and writes the full
// array back, so no error can leave a partially-written document.
package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/clock"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/cycle"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/lifecycle"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/schedule"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/store"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// ErrNotCompletable is returned when a recurring entity is completed
// outside its admission window (already credited today, or more than the
// early-completion span before its next cycle).
var ErrNotCompletable = errors.New("entities: not completable now")

// DefaultRetention is how long tombstoned entities are kept before purge.
const DefaultRetention = 30 * 24 * time.Hour

// Service manages the entity array persisted under one document key.
// Operations on unknown ids are no-ops returning nil results, not errors.
type Service struct {
	kind  model.Kind
	docs  store.DocStore
	life  *lifecycle.Manager
	clock clock.Clock
	log   logx.Logger
}

func New(kind model.Kind, docs store.DocStore, life *lifecycle.Manager, clk clock.Clock, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{kind: kind, docs: docs, life: life, clock: clk, log: log.With(logx.String("kind", string(kind)))}
}

func (s *Service) Kind() model.Kind { return s.kind }

// LoadAll returns the persisted entities, migrated to the current schema.
// Tombstoned entities are filtered out unless includeDeleted is set. If
// migration changed anything, the corrected set is written back once.
func (s *Service) LoadAll(ctx context.Context, includeDeleted bool) ([]*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Entity, 0, len(all))
	for _, e := range all {
		if !includeDeleted && e.IsDeleted() {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// Get returns one entity (including tombstoned ones) or nil when unknown.
func (s *Service) Get(ctx context.Context, id string) (*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if _, e := findByID(all, id); e != nil {
		return e.Clone(), nil
	}
	return nil, nil
}

// Add persists a new entity and arms its triggers. On ErrPastSchedule
// nothing is persisted; on ErrTriggerCreation the entity is persisted
// disabled and the error is still returned.
func (s *Service) Add(ctx context.Context, e *model.Entity) (*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	e = e.Clone()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Kind = s.kind
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock.Now()
	}
	if e.TriggerIDs == nil {
		e.TriggerIDs = []string{}
	}

	_, rerr := s.life.Reschedule(ctx, e, false)
	if errors.Is(rerr, schedule.ErrPastSchedule) {
		return nil, rerr
	}

	all = append(all, e)
	if err := s.save(ctx, all); err != nil {
		return nil, err
	}
	return e.Clone(), rerr
}

// Update replaces an entity's schedule/display fields and re-arms its
// triggers. The stored trigger ids and creation time are carried over so
// the cancel step hits the live set. Unknown id is a no-op.
func (s *Service) Update(ctx context.Context, in *model.Entity) (*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx, existing := findByID(all, in.ID)
	if existing == nil {
		return nil, nil
	}

	e := in.Clone()
	e.Kind = s.kind
	e.TriggerIDs = existing.TriggerIDs
	e.LegacyTriggerID = existing.LegacyTriggerID
	e.CreatedAt = existing.CreatedAt
	e.DeletedAt = existing.DeletedAt
	if e.History == nil {
		e.History = existing.History
	}

	_, rerr := s.life.Reschedule(ctx, e, false)
	if errors.Is(rerr, schedule.ErrPastSchedule) {
		return nil, rerr
	}

	all[idx] = e
	if err := s.save(ctx, all); err != nil {
		return nil, err
	}
	return e.Clone(), rerr
}

// Toggle enables or disables an entity. Enabling a one-time entity whose
// instant has passed leaves it disabled and surfaces ErrPastSchedule.
func (s *Service) Toggle(ctx context.Context, id string, enabled bool) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		e.Enabled = enabled
		_, rerr := s.life.Reschedule(ctx, e, false)
		if errors.Is(rerr, schedule.ErrPastSchedule) {
			e.Enabled = false
		}
		return rerr
	})
}

// Complete marks a non-recurring entity done and cancels its triggers.
func (s *Service) Complete(ctx context.Context, id string) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		e.Completed = true
		_, rerr := s.life.Reschedule(ctx, e, false)
		return rerr
	})
}

// CompleteRecurring credits the current cycle of a recurring entity and
// advances it to the next one. Outside the admission window it changes
// nothing and returns ErrNotCompletable.
func (s *Service) CompleteRecurring(ctx context.Context, id string) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		now := s.clock.Now()
		if !cycle.IsCompletableNow(e, now) {
			return ErrNotCompletable
		}
		cycle.AdvanceCycle(e, now)
		_, rerr := s.life.Reschedule(ctx, e, true)
		return rerr
	})
}

// UndoLastCompletion pops the most recent completion credit and re-arms
// the schedule without the skip.
func (s *Service) UndoLastCompletion(ctx context.Context, id string) (*model.Entity, error) {
	return s.mutate(ctx, id, func(e *model.Entity) error {
		if !cycle.UndoLastCompletion(e) {
			return nil
		}
		_, rerr := s.life.Reschedule(ctx, e, false)
		return rerr
	})
}

// SoftDelete tombstones an entity and cancels its triggers. History is
// retained for a possible restore. Reports false for unknown ids.
func (s *Service) SoftDelete(ctx context.Context, id string) (bool, error) {
	e, err := s.mutate(ctx, id, func(e *model.Entity) error {
		now := s.clock.Now()
		e.DeletedAt = &now
		s.life.CancelTriggers(ctx, e)
		return nil
	})
	return e != nil, err
}

// Restore un-tombstones an entity and recomputes its triggers. The new
// trigger set is equivalent to, not necessarily identical with, the one
// cancelled at soft-delete time. No-op when the id is unknown or not
// deleted.
func (s *Service) Restore(ctx context.Context, id string) (*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx, e := findByID(all, id)
	if e == nil || !e.IsDeleted() {
		return nil, nil
	}
	e.DeletedAt = nil
	_, rerr := s.life.Reschedule(ctx, e, false)
	if errors.Is(rerr, schedule.ErrPastSchedule) {
		e.Enabled = false
		rerr = nil
	}
	all[idx] = e
	if err := s.save(ctx, all); err != nil {
		return nil, err
	}
	return e.Clone(), rerr
}

// PermanentlyDelete removes an entity outright. Reports false for unknown ids.
func (s *Service) PermanentlyDelete(ctx context.Context, id string) (bool, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return false, err
	}
	idx, e := findByID(all, id)
	if e == nil {
		return false, nil
	}
	s.life.CancelTriggers(ctx, e)
	all = append(all[:idx], all[idx+1:]...)
	if err := s.save(ctx, all); err != nil {
		return false, err
	}
	return true, nil
}

// PurgeOlderThan permanently removes tombstoned entities deleted more than
// window ago and returns how many were purged.
func (s *Service) PurgeOlderThan(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = DefaultRetention
	}
	all, err := s.loadAll(ctx)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	kept := all[:0]
	purged := 0
	for _, e := range all {
		if e.IsDeleted() && now.Sub(*e.DeletedAt) > window {
			s.life.CancelTriggers(ctx, e)
			purged++
			continue
		}
		kept = append(kept, e)
	}
	if purged == 0 {
		return 0, nil
	}
	if err := s.save(ctx, kept); err != nil {
		return 0, err
	}
	s.log.Info("purged tombstoned entities", logx.Int("count", purged))
	return purged, nil
}

// RescheduleAll re-derives every live trigger from the persisted documents.
// Called on boot so the platform trigger set matches the schedules exactly
// regardless of what was armed before the restart. A one-time entity whose
// instant passed while the process was down is disabled rather than dropped.
func (s *Service) RescheduleAll(ctx context.Context) error {
	all, err := s.loadAll(ctx)
	if err != nil {
		return err
	}
	for _, e := range all {
		if e.IsDeleted() || !e.Enabled {
			continue
		}
		if _, rerr := s.life.Reschedule(ctx, e, false); errors.Is(rerr, schedule.ErrPastSchedule) {
			e.Enabled = false
		}
	}
	return s.save(ctx, all)
}

// DetachTrigger drops a spent trigger id from its entity, keeping the
// persisted set 1:1 with the live one after a one-time firing.
func (s *Service) DetachTrigger(ctx context.Context, entityID, triggerID string) error {
	_, err := s.mutate(ctx, entityID, func(e *model.Entity) error {
		kept := e.TriggerIDs[:0]
		for _, id := range e.TriggerIDs {
			if id != triggerID {
				kept = append(kept, id)
			}
		}
		e.TriggerIDs = kept
		return nil
	})
	return err
}

// IsCompletableNow reports the completion admission decision at the
// service clock's now. Exposed for UI collaborators.
func (s *Service) IsCompletableNow(e *model.Entity) bool {
	return cycle.IsCompletableNow(e, s.clock.Now())
}

// CurrentCycle exposes the backward-looking cycle instant for display.
func (s *Service) CurrentCycle(e *model.Entity) (time.Time, bool) {
	return schedule.CurrentCycle(schedule.FromEntity(e), s.clock.Now())
}

// NextCycle exposes the nearest future occurrence for display.
func (s *Service) NextCycle(e *model.Entity) (time.Time, bool) {
	return schedule.NextCycle(schedule.FromEntity(e), s.clock.Now())
}

// SaveAll replaces the whole persisted array. Intended for collaborators
// that edited entities in bulk; trigger bookkeeping is the caller's duty.
func (s *Service) SaveAll(ctx context.Context, all []*model.Entity) error {
	return s.save(ctx, all)
}

// mutate applies one change to one entity and writes the array back.
// The entity is persisted even when fn returns a recoverable error
// (disabled-on-failure policy); only store errors abort the write.
func (s *Service) mutate(ctx context.Context, id string, fn func(e *model.Entity) error) (*model.Entity, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	idx, e := findByID(all, id)
	if e == nil {
		return nil, nil
	}
	ferr := fn(e)
	if errors.Is(ferr, ErrNotCompletable) {
		return e.Clone(), ferr
	}
	all[idx] = e
	if err := s.save(ctx, all); err != nil {
		return nil, err
	}
	return e.Clone(), ferr
}

func (s *Service) loadAll(ctx context.Context) ([]*model.Entity, error) {
	raw, ok, err := s.docs.Get(ctx, s.kind.StoreKey())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.kind.StoreKey(), err)
	}
	if !ok {
		return nil, nil
	}
	all, changed := decodeDocument([]byte(raw), s.kind)
	if changed {
		// Write the healed set back exactly once per load.
		if err := s.save(ctx, all); err != nil {
			return nil, err
		}
		s.log.Debug("document migrated", logx.Int("records", len(all)))
	}
	return all, nil
}

func (s *Service) save(ctx context.Context, all []*model.Entity) error {
	if all == nil {
		all = []*model.Entity{}
	}
	b, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.kind.StoreKey(), err)
	}
	if err := s.docs.Set(ctx, s.kind.StoreKey(), string(b)); err != nil {
		return fmt.Errorf("save %s: %w", s.kind.StoreKey(), err)
	}
	return nil
}

func findByID(all []*model.Entity, id string) (int, *model.Entity) {
	for i, e := range all {
		if e.ID == id {
			return i, e
		}
	}
	return -1, nil
}
