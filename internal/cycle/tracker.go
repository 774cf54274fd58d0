// Package cycle decides whether a recurring entity is completable right now
// and advances its schedule when a cycle is completed.
package cycle

import (
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/schedule"
)

// EarlyWindow is the span before a cycle's instant during which early
// completion is admitted.
const EarlyWindow = 6 * time.Hour

// dateTolerance is the +/- window, in days, for completing a date-only
// yearly entity.
const dateTolerance = 1

// HasCompletedToday reports whether any history entry was credited on
// today's calendar date in now's location. This is the sole gate against
// a second completion credit within one calendar day.
func HasCompletedToday(history []model.CompletionEntry, now time.Time) bool {
	today := model.DateOf(now)
	for _, entry := range history {
		if model.DateOf(entry.CompletedAt.In(now.Location())) == today {
			return true
		}
	}
	return false
}

// IsCompletableNow reports whether the entity may be marked complete at now.
//
// Non-recurring entities always are. Recurring entities without a time of
// day are always completable, except a date-only yearly one, which is
// completable only within one day of its date. Recurring timed entities are
// completable once per calendar day, from EarlyWindow before the next cycle
// instant onward (or unconditionally when no next cycle exists).
func IsCompletableNow(e *model.Entity, now time.Time) bool {
	if !e.Recurring {
		return true
	}
	s := schedule.FromEntity(e)
	if s.Time == nil {
		if s.Kind == schedule.Yearly {
			delta := model.DaysBetween(s.Date, model.DateOf(now))
			return delta >= -dateTolerance && delta <= dateTolerance
		}
		return true
	}
	if HasCompletedToday(e.History, now) {
		return false
	}
	next, ok := schedule.NextCycle(s, now)
	if !ok {
		return true
	}
	return !now.Before(next.Add(-EarlyWindow))
}

// AdvanceCycle credits the current cycle to the entity's history and moves
// its schedule to the next occurrence. A yearly date rolls forward one year
// (clamped, so Feb 29 lands on Feb 28 in non-leap years); daily and weekly
// schedules keep a nil date since their next occurrence is always computed
// relative to now at reschedule time. A recurring entity is never marked
// permanently completed.
func AdvanceCycle(e *model.Entity, now time.Time) {
	s := schedule.FromEntity(e)

	entry := model.CompletionEntry{CompletedAt: now}
	if cur, ok := schedule.CurrentCycle(s, now); ok {
		entry.ScheduledFor = &cur
	}
	e.History = append(e.History, entry)

	if s.Kind == schedule.Yearly && e.Date != nil {
		next := e.Date.AddYears(1)
		e.Date = &next
	}
	e.Completed = false
}

// UndoLastCompletion pops the most recent history entry. It reports false
// when there is nothing to undo. Popping is the only supported undo; the
// schedule itself is re-derived on the next reschedule.
func UndoLastCompletion(e *model.Entity) bool {
	if len(e.History) == 0 {
		return false
	}
	e.History = e.History[:len(e.History)-1]
	return true
}
