package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/eventbus"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

func startedEngine(t *testing.T, h Handler, bus eventbus.Bus) *Engine {
	t.Helper()
	e := New(Config{}, h, bus, logx.Nop())
	e.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.Stop(ctx)
	})
	return e
}

func TestCreateRequiresStart(t *testing.T) {
	t.Parallel()
	e := New(Config{}, nil, nil, logx.Nop())
	_, err := e.Create(context.Background(), Payload{EntityID: "x"}, time.Now().Add(time.Hour), RepeatNone)
	if err != ErrNotStarted {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()
	e := startedEngine(t, nil, nil)
	ctx := context.Background()

	id, err := e.Create(ctx, Payload{EntityID: "x"}, time.Now().Add(time.Hour), RepeatNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Active() != 1 {
		t.Fatalf("Active = %d, want 1", e.Active())
	}

	if err := e.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if e.Active() != 0 {
		t.Fatalf("Active after cancel = %d, want 0", e.Active())
	}
	// Unknown, already-cancelled and empty ids are all success.
	if err := e.Cancel(ctx, id); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if err := e.Cancel(ctx, "no-such-id"); err != nil {
		t.Fatalf("Cancel unknown: %v", err)
	}
	if err := e.Cancel(ctx, ""); err != nil {
		t.Fatalf("Cancel empty: %v", err)
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()
	e := startedEngine(t, nil, nil)
	ctx := context.Background()

	if _, err := e.Create(ctx, Payload{EntityID: "a"}, time.Now().Add(time.Hour), RepeatNone); err != nil {
		t.Fatalf("Create one-time: %v", err)
	}
	if _, err := e.Create(ctx, Payload{EntityID: "b"}, time.Now().Add(time.Hour), RepeatDaily); err != nil {
		t.Fatalf("Create daily: %v", err)
	}
	if _, err := e.Create(ctx, Payload{EntityID: "c"}, time.Now().Add(time.Hour), RepeatWeekly); err != nil {
		t.Fatalf("Create weekly: %v", err)
	}
	if e.Active() != 3 {
		t.Fatalf("Active = %d, want 3", e.Active())
	}
	if err := e.CancelAll(ctx); err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if e.Active() != 0 {
		t.Fatalf("Active after CancelAll = %d, want 0", e.Active())
	}
}

func TestOneTimeFiresHandlerAndBus(t *testing.T) {
	t.Parallel()
	fired := make(chan Firing, 1)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	e := startedEngine(t, func(ctx context.Context, f Firing) {
		_ = ctx
		fired <- f
	}, bus)

	at := time.Now().Add(10 * time.Millisecond)
	id, err := e.Create(context.Background(), Payload{EntityID: "x", Kind: model.KindAlarm, Title: "wake"}, at, RepeatNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case f := <-fired:
		if f.TriggerID != id || f.Payload.EntityID != "x" || f.Repeat != RepeatNone {
			t.Fatalf("unexpected firing: %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handler")
	}

	select {
	case ev := <-events:
		if ev.Type != EventFired {
			t.Fatalf("event type = %q, want %q", ev.Type, EventFired)
		}
		if f, ok := ev.Data.(Firing); !ok || f.TriggerID != id {
			t.Fatalf("unexpected event data: %+v", ev.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for bus event")
	}

	// A spent one-time trigger leaves the live set.
	if e.Active() != 0 {
		t.Fatalf("Active after firing = %d, want 0", e.Active())
	}
}

func TestCancelledTimerDoesNotFire(t *testing.T) {
	t.Parallel()
	fired := make(chan Firing, 1)
	e := startedEngine(t, func(ctx context.Context, f Firing) {
		_ = ctx
		fired <- f
	}, nil)
	ctx := context.Background()

	id, err := e.Create(ctx, Payload{EntityID: "x"}, time.Now().Add(50*time.Millisecond), RepeatNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.Cancel(ctx, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	select {
	case f := <-fired:
		t.Fatalf("cancelled trigger fired: %+v", f)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCronSpec(t *testing.T) {
	t.Parallel()
	at := time.Date(2025, 6, 12, 8, 30, 0, 0, time.UTC) // a Thursday
	if got := cronSpec(at, RepeatDaily); got != "30 8 * * *" {
		t.Fatalf("daily spec = %q", got)
	}
	if got := cronSpec(at, RepeatWeekly); got != "30 8 * * 4" {
		t.Fatalf("weekly spec = %q", got)
	}
}

func TestRepeatString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rep  Repeat
		want string
	}{
		{RepeatNone, "none"},
		{RepeatDaily, "daily"},
		{RepeatWeekly, "weekly"},
		{Repeat(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.rep.String(); got != tt.want {
			t.Fatalf("String(%d) = %q, want %q", int(tt.rep), got, tt.want)
		}
	}
}
