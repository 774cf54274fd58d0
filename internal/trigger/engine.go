package trigger

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/eventbus"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

var ErrNotStarted = errors.New("trigger engine not started")

// Engine is the in-process implementation of the platform trigger API.
//
// One-time triggers are armed as timers; daily and weekly repeats are cron
// entries with a first-fire floor (a repeat never fires before the instant
// it was created for). The engine persists nothing: on restart the entity
// documents are the source of truth and every trigger is re-derived.
type Engine struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	loc     *time.Location
	handler Handler
	bus     eventbus.Bus

	c       *cron.Cron
	entries map[string]*cronEntry
	timers  map[string]*time.Timer

	runCtx    context.Context
	runCancel context.CancelFunc
	started   bool
}

type cronEntry struct {
	entryID cron.EntryID
	p       Payload
	rep     Repeat
	// notBefore floors the first fire so a schedule armed for "tomorrow
	// 08:00" is not fired by today's matching cron tick.
	notBefore time.Time
}

func New(cfg Config, handler Handler, bus eventbus.Bus, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg:     cfg,
		log:     log,
		handler: handler,
		bus:     bus,
		entries: map[string]*cronEntry{},
		timers:  map[string]*time.Timer{},
	}
}

// Location is the engine's scheduling timezone.
func (e *Engine) Location() *time.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loc == nil {
		return time.Local
	}
	return e.loc
}

func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	loc := e.loadLocationLocked()
	e.loc = loc
	e.c = cron.New(cron.WithLocation(loc))
	e.c.Start()
	e.runCtx, e.runCancel = context.WithCancel(ctx)
	e.started = true
	e.log.Info("trigger engine started", logx.String("tz", loc.String()))
}

func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	c := e.c
	e.c = nil
	cancel := e.runCancel
	e.runCancel = nil
	for id, t := range e.timers {
		_ = t.Stop()
		delete(e.timers, id)
	}
	e.entries = map[string]*cronEntry{}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	e.log.Info("trigger engine stopped")
}

// Create arms a trigger and returns its opaque id.
func (e *Engine) Create(ctx context.Context, p Payload, at time.Time, rep Repeat) (string, error) {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return "", ErrNotStarted
	}

	id := uuid.NewString()
	switch rep {
	case RepeatNone:
		d := time.Until(at)
		if d < 0 {
			d = 0
		}
		e.timers[id] = time.AfterFunc(d, func() { e.fireOnce(id, p, at) })
	case RepeatDaily, RepeatWeekly:
		local := at.In(e.loc)
		entry := &cronEntry{p: p, rep: rep, notBefore: at}
		entryID, err := e.c.AddFunc(cronSpec(local, rep), func() { e.fireRepeat(id) })
		if err != nil {
			return "", fmt.Errorf("add cron entry: %w", err)
		}
		entry.entryID = entryID
		e.entries[id] = entry
	default:
		return "", fmt.Errorf("unsupported repeat policy %d", int(rep))
	}

	e.log.Debug("trigger created",
		logx.String("trigger_id", id),
		logx.String("entity_id", p.EntityID),
		logx.String("repeat", rep.String()),
		logx.Time("at", at),
	)
	return id, nil
}

// Cancel disarms a trigger. Cancelling an unknown or already-fired id is
// success; callers rely on idempotent cancel.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	_ = ctx
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[id]; ok {
		_ = t.Stop()
		delete(e.timers, id)
		return nil
	}
	if entry, ok := e.entries[id]; ok {
		if e.c != nil {
			e.c.Remove(entry.entryID)
		}
		delete(e.entries, id)
	}
	return nil
}

// CancelAll disarms every live trigger.
func (e *Engine) CancelAll(ctx context.Context) error {
	_ = ctx
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		_ = t.Stop()
		delete(e.timers, id)
	}
	for id, entry := range e.entries {
		if e.c != nil {
			e.c.Remove(entry.entryID)
		}
		delete(e.entries, id)
	}
	return nil
}

// Active reports the number of live triggers.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers) + len(e.entries)
}

func (e *Engine) fireOnce(id string, p Payload, at time.Time) {
	e.mu.Lock()
	if _, ok := e.timers[id]; !ok {
		// Cancelled while the timer callback was in flight.
		e.mu.Unlock()
		return
	}
	delete(e.timers, id)
	ctx := e.runCtx
	e.mu.Unlock()

	e.dispatch(ctx, Firing{TriggerID: id, Payload: p, At: at, Repeat: RepeatNone})
}

func (e *Engine) fireRepeat(id string) {
	e.mu.Lock()
	entry, ok := e.entries[id]
	ctx := e.runCtx
	e.mu.Unlock()
	if !ok {
		return
	}
	now := time.Now()
	// Cron ticks land on the minute; allow a little slack around the floor.
	if now.Before(entry.notBefore.Add(-time.Minute)) {
		return
	}
	e.dispatch(ctx, Firing{TriggerID: id, Payload: entry.p, At: now, Repeat: entry.rep})
}

func (e *Engine) dispatch(ctx context.Context, f Firing) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if e.bus != nil {
		e.bus.Publish(EventFired, f)
	}
	if e.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic in trigger handler",
				logx.String("trigger_id", f.TriggerID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	e.handler(ctx, f)
}

func cronSpec(local time.Time, rep Repeat) string {
	if rep == RepeatWeekly {
		return fmt.Sprintf("%d %d * * %d", local.Minute(), local.Hour(), int(local.Weekday()))
	}
	return fmt.Sprintf("%d %d * * *", local.Minute(), local.Hour())
}

func (e *Engine) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(e.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
