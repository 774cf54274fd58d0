// Package schedule computes occurrence timestamps for alarm and reminder
// schedules. Everything here is a pure function of (spec, now); nothing
// reads the wall clock.
package schedule

import (
	"errors"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
)

// ErrPastSchedule is returned when a one-time schedule resolves to an
// instant at or before now. It is surfaced to the caller, never silently
// rescheduled; callers must re-validate before persisting because time
// passes between user input and save.
var ErrPastSchedule = errors.New("schedule: computed instant is not in the future")

// PatternKind tags the recurrence pattern of a Spec.
type PatternKind int

const (
	// Daily fires every day at the spec's time of day.
	Daily PatternKind = iota
	// Weekly fires on each day in the spec's day set. A weekly spec is
	// represented as one independent trigger per day, not a compound rule.
	Weekly
	// OneTime fires exactly once at date + time of day.
	OneTime
	// Yearly fires once per year at date + time of day; the stored date is
	// rolled forward a year when a cycle completes.
	Yearly
)

func (k PatternKind) String() string {
	switch k {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case OneTime:
		return "one-time"
	case Yearly:
		return "yearly"
	default:
		return "unknown"
	}
}

// Spec is an immutable schedule specification derived from an entity's
// persisted fields.
//
// Invariants: Days is non-empty and sorted only when Kind == Weekly, and
// never holds all seven days (a full week collapses to Daily at derivation
// time). Date is set only for OneTime and Yearly.
type Spec struct {
	Time *model.TimeOfDay
	Kind PatternKind
	Days []model.Weekday
	Date model.Date
}

// FromEntity derives the schedule spec from an entity's raw fields.
func FromEntity(e *model.Entity) Spec {
	s := Spec{}
	if e.Time != nil && e.Time.Valid() {
		t := *e.Time
		s.Time = &t
	}

	days := model.NormalizeDays(e.Days)
	if n := len(days); n >= 1 && n <= 6 {
		s.Kind = Weekly
		s.Days = days
		return s
	}
	// Zero or all seven days: the day set carries no information.
	if e.Date != nil && !e.Date.IsZero() && len(days) == 0 {
		s.Date = *e.Date
		if e.Recurring {
			s.Kind = Yearly
		} else {
			s.Kind = OneTime
		}
		return s
	}
	s.Kind = Daily
	return s
}
