package trigger

import (
	"context"
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
)

// Repeat is the platform repeat policy of a trigger.
type Repeat int

const (
	RepeatNone Repeat = iota
	RepeatDaily
	RepeatWeekly
)

func (r Repeat) String() string {
	switch r {
	case RepeatNone:
		return "none"
	case RepeatDaily:
		return "daily"
	case RepeatWeekly:
		return "weekly"
	default:
		return "unknown"
	}
}

// Payload is the notification content bound to a trigger.
type Payload struct {
	EntityID string
	Kind     model.Kind
	Title    string
	Body     string
}

// Firing describes one trigger going off.
type Firing struct {
	TriggerID string
	Payload   Payload
	At        time.Time
	Repeat    Repeat
}

// EventFired is published on the bus for every firing so bookkeeping can
// react without coupling to the engine.
const EventFired = "trigger.fired"

// API is the platform trigger contract the lifecycle manager consumes.
// Cancel of an unknown or already-fired id is success (idempotent cancel).
type API interface {
	Create(ctx context.Context, p Payload, at time.Time, rep Repeat) (string, error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

// Handler receives firings; it runs on the engine's dispatch goroutine.
type Handler func(ctx context.Context, f Firing)

// Config controls the trigger engine.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Riga"; empty means process local
}
