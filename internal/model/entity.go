package model

import (
	"time"
)

// Kind discriminates the two entity families. Each kind is persisted under
// its own document key.
type Kind string

const (
	KindAlarm    Kind = "alarm"
	KindReminder Kind = "reminder"
)

// StoreKey is the document key the kind's entity array is persisted under.
func (k Kind) StoreKey() string {
	switch k {
	case KindAlarm:
		return "alarms"
	case KindReminder:
		return "reminders"
	default:
		return string(k)
	}
}

// CompletionEntry is one completed cycle of a recurring entity. The history
// is append-only; popping the last entry is the only supported undo.
type CompletionEntry struct {
	CompletedAt time.Time `json:"completed_at"`
	// ScheduledFor records the cycle instant the completion was credited to,
	// when the schedule had a resolvable one.
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// Entity is one alarm or reminder record. It owns its schedule fields, the
// trigger ids currently live for it, its completion history, and a
// soft-delete tombstone. Display fields (text, icon, category) are carried
// opaquely for the UI collaborators that own them.
type Entity struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Text     string `json:"text"`
	Icon     string `json:"icon,omitempty"`
	Category string `json:"category,omitempty"`

	Enabled   bool `json:"enabled"`
	Completed bool `json:"completed"`
	Recurring bool `json:"recurring"`

	Time *TimeOfDay `json:"time,omitempty"`
	Days []Weekday  `json:"days,omitempty"`
	Date *Date      `json:"date,omitempty"`

	// TriggerIDs mirrors the live platform trigger set 1:1. An enabled,
	// schedulable entity with an empty set means scheduling itself failed.
	TriggerIDs []string `json:"trigger_ids"`

	// LegacyTriggerID is the pre-collection single trigger id. It is folded
	// into TriggerIDs the first time the lifecycle manager touches the
	// entity and never written again.
	LegacyTriggerID string `json:"notification_id,omitempty"`

	History []CompletionEntry `json:"history,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (e *Entity) IsDeleted() bool { return e.DeletedAt != nil }

// Clone returns a deep copy so callers can hand entities out without
// aliasing the stored slices.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Time != nil {
		t := *e.Time
		cp.Time = &t
	}
	if e.Date != nil {
		d := *e.Date
		cp.Date = &d
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		cp.DeletedAt = &t
	}
	cp.Days = append([]Weekday(nil), e.Days...)
	cp.TriggerIDs = append([]string(nil), e.TriggerIDs...)
	cp.History = make([]CompletionEntry, len(e.History))
	for i, h := range e.History {
		cp.History[i] = h
		if h.ScheduledFor != nil {
			t := *h.ScheduledFor
			cp.History[i].ScheduledFor = &t
		}
	}
	return &cp
}
