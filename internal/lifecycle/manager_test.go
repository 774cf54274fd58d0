package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/clock"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/delivery"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/schedule"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/trigger"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// fakeTriggers records every call against the trigger API.
type fakeTriggers struct {
	mu        sync.Mutex
	nextID    int
	created   []createdTrigger
	cancelled []string

	// failAfter makes Create fail once this many triggers were created.
	failAfter int
	failErr   error
}

type createdTrigger struct {
	p   trigger.Payload
	at  time.Time
	rep trigger.Repeat
}

func (f *fakeTriggers) Create(ctx context.Context, p trigger.Payload, at time.Time, rep trigger.Repeat) (string, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil && len(f.created) >= f.failAfter {
		return "", f.failErr
	}
	f.nextID++
	f.created = append(f.created, createdTrigger{p: p, at: at, rep: rep})
	return fmt.Sprintf("trig-%d", f.nextID), nil
}

func (f *fakeTriggers) Cancel(ctx context.Context, id string) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeTriggers) CancelAll(ctx context.Context) error {
	_ = ctx
	return nil
}

// failingSink refuses channel setup, simulating missing permissions.
type failingSink struct{}

func (failingSink) EnsureChannel(ctx context.Context) error {
	_ = ctx
	return errors.New("channel denied")
}

func (failingSink) Deliver(ctx context.Context, n delivery.Notification) error {
	_ = ctx
	_ = n
	return nil
}

func thursday(hour, min int) time.Time {
	return time.Date(2025, 6, 12, hour, min, 0, 0, time.Local)
}

func newManager(ft *fakeTriggers, now time.Time) *Manager {
	return New(ft, delivery.NewLogSink(logx.Nop()), clock.Fixed(now), logx.Nop())
}

func weeklyEntity(days ...model.Weekday) *model.Entity {
	tod := model.TimeOfDay{Hour: 8}
	return &model.Entity{
		ID: "e1", Kind: model.KindReminder, Text: "gym",
		Enabled: true, Recurring: true,
		Time: &tod, Days: days,
	}
}

func TestRescheduleWeeklyCreatesOneTriggerPerDay(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday, model.Wednesday, model.Friday)

	ids, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.Equal(t, ids, e.TriggerIDs)
	require.Len(t, ft.created, 3)
	for _, c := range ft.created {
		require.Equal(t, trigger.RepeatWeekly, c.rep)
		require.Equal(t, "e1", c.p.EntityID)
	}
	require.Empty(t, ft.cancelled)
}

func TestRescheduleCancelsBeforeCreating(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday, model.Friday)

	first, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	second, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)

	// Edit protocol: every old id cancelled, a fresh set created.
	require.Equal(t, first, ft.cancelled)
	require.Len(t, second, 2)
	require.NotEqual(t, first, second)
	require.Equal(t, second, e.TriggerIDs)
}

func TestRescheduleEditShrinksWeeklySetToDaily(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday, model.Wednesday, model.Friday)

	old, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Len(t, old, 3)

	// The edit drops the day set, collapsing the schedule to daily.
	e.Days = nil
	ids, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)

	// Exactly one cancel per previously-held id, then one create.
	require.Equal(t, old, ft.cancelled)
	require.Len(t, ids, 1)
	require.Equal(t, trigger.RepeatDaily, ft.created[len(ft.created)-1].rep)
}

func TestRescheduleFoldsLegacyTriggerID(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday)
	e.LegacyTriggerID = "legacy-1"

	_, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Contains(t, ft.cancelled, "legacy-1")
	require.Empty(t, e.LegacyTriggerID)
}

func TestRescheduleDisabledOnlyCancels(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday)
	e.Enabled = false
	e.TriggerIDs = []string{"old-1", "old-2"}

	ids, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Nil(t, ids)
	require.Empty(t, e.TriggerIDs)
	require.Equal(t, []string{"old-1", "old-2"}, ft.cancelled)
	require.Empty(t, ft.created)
}

func TestReschedulePastOneTimeFailsBeforeCreating(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	tod := model.TimeOfDay{Hour: 9}
	d := model.Date{Year: 2025, Month: 6, Day: 12}
	e := &model.Entity{ID: "e1", Text: "call", Enabled: true, Time: &tod, Date: &d}

	_, err := m.Reschedule(context.Background(), e, false)
	require.ErrorIs(t, err, schedule.ErrPastSchedule)
	require.Empty(t, ft.created)
}

func TestRescheduleCreationFailureDisablesEntity(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{failAfter: 1, failErr: errors.New("platform quota")}
	m := newManager(ft, thursday(10, 0))
	e := weeklyEntity(model.Monday, model.Friday)

	_, err := m.Reschedule(context.Background(), e, false)
	require.ErrorIs(t, err, ErrTriggerCreation)
	require.False(t, e.Enabled)
	require.Empty(t, e.TriggerIDs)
	// The one trigger that did get created is rolled back.
	require.Equal(t, []string{"trig-1"}, ft.cancelled)
}

func TestRescheduleChannelFailureDisablesEntity(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := New(ft, failingSink{}, clock.Fixed(thursday(10, 0)), logx.Nop())
	e := weeklyEntity(model.Monday)

	_, err := m.Reschedule(context.Background(), e, false)
	require.ErrorIs(t, err, ErrTriggerCreation)
	require.False(t, e.Enabled)
	require.Empty(t, ft.created)
}

func TestRescheduleSkipCurrentPushesDaily(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	tod := model.TimeOfDay{Hour: 11}
	e := &model.Entity{ID: "e1", Text: "meds", Enabled: true, Recurring: true, Time: &tod}

	_, err := m.Reschedule(context.Background(), e, true)
	require.NoError(t, err)
	require.Len(t, ft.created, 1)
	require.Equal(t, trigger.RepeatDaily, ft.created[0].rep)
	// Today's still-pending 11:00 was just credited; first fire is tomorrow.
	require.Equal(t, thursday(11, 0).AddDate(0, 0, 1), ft.created[0].at)
}

func TestRescheduleCompletedNonRecurringOnlyCancels(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	tod := model.TimeOfDay{Hour: 11}
	d := model.Date{Year: 2025, Month: 6, Day: 20}
	e := &model.Entity{
		ID: "e1", Text: "dentist", Enabled: true, Completed: true,
		Time: &tod, Date: &d, TriggerIDs: []string{"old"},
	}

	ids, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Nil(t, ids)
	require.Equal(t, []string{"old"}, ft.cancelled)
	require.Empty(t, ft.created)
}

func TestRescheduleYearlyArmsOneTimeTrigger(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	tod := model.TimeOfDay{Hour: 8}
	d := model.Date{Year: 2025, Month: 12, Day: 24}
	e := &model.Entity{ID: "e1", Text: "renewal", Enabled: true, Recurring: true, Time: &tod, Date: &d}

	_, err := m.Reschedule(context.Background(), e, false)
	require.NoError(t, err)
	require.Len(t, ft.created, 1)
	require.Equal(t, trigger.RepeatNone, ft.created[0].rep)
	require.Equal(t, time.Date(2025, 12, 24, 8, 0, 0, 0, time.Local), ft.created[0].at)
}

func TestCancelTriggersIsBestEffortAndClears(t *testing.T) {
	t.Parallel()
	ft := &fakeTriggers{}
	m := newManager(ft, thursday(10, 0))
	e := &model.Entity{ID: "e1", Text: "x", TriggerIDs: []string{"a", "b"}}

	m.CancelTriggers(context.Background(), e)
	require.Empty(t, e.TriggerIDs)
	require.Equal(t, []string{"a", "b"}, ft.cancelled)

	// Cancelling again is a no-op.
	m.CancelTriggers(context.Background(), e)
	require.Equal(t, []string{"a", "b"}, ft.cancelled)
}
