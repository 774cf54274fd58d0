// Package app wires the daemon together: config, logging, store, trigger
// engine, delivery, and the two entity services.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/clock"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/config"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/delivery"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/eventbus"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/lifecycle"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/services/entities"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/store"
	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/trigger"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

const defaultSweepEvery = 6 * time.Hour

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	docs      store.DocStore
	bus       eventbus.Bus
	engine    *trigger.Engine
	sink      delivery.Sink
	previewer *delivery.Previewer
	life      *lifecycle.Manager

	alarms    *entities.Service
	reminders *entities.Service

	retentionWindow time.Duration
	sweepEvery      time.Duration

	wg      sync.WaitGroup
	stopRun context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log)

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	docs, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	window, err := config.ParseDurationOrDefault("retention.window", cfg.Retention.Window, entities.DefaultRetention)
	if err != nil {
		return nil, err
	}
	sweep, err := config.ParseDurationOrDefault("retention.sweep_every", cfg.Retention.SweepEvery, defaultSweepEvery)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgMgr:          mgr,
		logSvc:          logSvc,
		log:             log,
		docs:            docs,
		bus:             eventbus.New(),
		retentionWindow: window,
		sweepEvery:      sweep,
	}

	if cfg.Delivery.Telegram.Enabled {
		a.sink = delivery.NewTelegram(delivery.Config{
			RatePerSec: cfg.Delivery.RatePerSec,
			Telegram: delivery.TelegramConfig{
				Enabled: true,
				Token:   cfg.Delivery.Telegram.Token,
				ChatID:  cfg.Delivery.Telegram.ChatID,
			},
		}, log)
	} else {
		a.sink = delivery.NewLogSink(log)
	}
	a.previewer = delivery.NewPreviewer(a.sink, log)

	a.engine = trigger.New(trigger.Config{Timezone: cfg.Triggers.Timezone}, a.handleFiring, a.bus, log)

	clk := clock.System()
	a.life = lifecycle.New(a.engine, a.sink, clk, log)
	a.alarms = entities.New(model.KindAlarm, docs, a.life, clk, log)
	a.reminders = entities.New(model.KindReminder, docs, a.life, clk, log)

	return a, nil
}

func (a *App) Alarms() *entities.Service      { return a.alarms }
func (a *App) Reminders() *entities.Service   { return a.reminders }
func (a *App) Previewer() *delivery.Previewer { return a.previewer }

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.stopRun = cancel

	a.engine.Start(runCtx)

	// The persisted documents are the source of truth: re-derive every live
	// trigger so pending triggers match the latest schedules after restart.
	for _, svc := range []*entities.Service{a.alarms, a.reminders} {
		if err := svc.RescheduleAll(runCtx); err != nil {
			// Trigger failures persist entities disabled; only store errors land here.
			a.log.Error("boot reschedule failed", logx.String("kind", string(svc.Kind())), logx.Err(err))
			return err
		}
	}

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		_ = a.cfgMgr.Watch(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.configLoop(runCtx)
	}()
	go func() {
		defer a.wg.Done()
		a.sweepLoop(runCtx)
	}()

	// Bus subscription for trigger bookkeeping.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.firedLoop(runCtx)
	}()

	a.log.Info("started",
		logx.Duration("retention_window", a.retentionWindow),
		logx.Duration("sweep_every", a.sweepEvery),
	)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.stopRun != nil {
		a.stopRun()
	}
	a.engine.Stop(ctx)
	a.wg.Wait()
	if a.docs != nil {
		_ = a.docs.Close()
	}
	a.log.Info("stopped")
	return a.logSvc.Close()
}

// handleFiring pushes a fired trigger to the delivery sink.
func (a *App) handleFiring(ctx context.Context, f trigger.Firing) {
	n := delivery.Notification{
		EntityID: f.Payload.EntityID,
		Kind:     f.Payload.Kind,
		Title:    f.Payload.Title,
		Body:     f.Payload.Body,
		At:       f.At,
	}
	if err := a.sink.Deliver(ctx, n); err != nil {
		a.log.Warn("delivery failed", logx.String("entity_id", n.EntityID), logx.Err(err))
	}
}

// firedLoop keeps persisted trigger sets 1:1 with live triggers: a spent
// one-time trigger id is removed from its entity after firing.
func (a *App) firedLoop(ctx context.Context) {
	ch, unsub := a.bus.Subscribe(32)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Type != trigger.EventFired {
				continue
			}
			f, ok := ev.Data.(trigger.Firing)
			if !ok || f.Repeat != trigger.RepeatNone {
				continue
			}
			svc := a.serviceFor(f.Payload.Kind)
			if svc == nil {
				continue
			}
			if err := svc.DetachTrigger(ctx, f.Payload.EntityID, f.TriggerID); err != nil {
				a.log.Warn("trigger detach failed",
					logx.String("entity_id", f.Payload.EntityID),
					logx.Err(err),
				)
			}
		}
	}
}

func (a *App) serviceFor(kind model.Kind) *entities.Service {
	switch kind {
	case model.KindAlarm:
		return a.alarms
	case model.KindReminder:
		return a.reminders
	default:
		return nil
	}
}

// configLoop applies hot-reloadable config sections. Storage, delivery and
// timezone changes require a restart and are only logged.
func (a *App) configLoop(ctx context.Context) {
	ch := a.cfgMgr.Subscribe(4)
	defer a.cfgMgr.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-ch:
			if !ok || cfg == nil {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
			a.log.Info("logging config applied", logx.String("level", cfg.Logging.Level))
		}
	}
}

func (a *App) sweepLoop(ctx context.Context) {
	t := time.NewTicker(a.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, svc := range []*entities.Service{a.alarms, a.reminders} {
				if _, err := svc.PurgeOlderThan(ctx, a.retentionWindow); err != nil {
					a.log.Warn("purge sweep failed", logx.String("kind", string(svc.Kind())), logx.Err(err))
				}
			}
		}
	}
}
