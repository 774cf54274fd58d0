package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// Telegram delivers notifications to a single chat. Connection setup is
// deferred to EnsureChannel so construction never touches the network.
type Telegram struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter

	mu  sync.Mutex
	bot *tele.Bot
}

func NewTelegram(cfg Config, log logx.Logger) *Telegram {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	return &Telegram{
		cfg: cfg,
		log: log,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

func (t *Telegram) EnsureChannel(ctx context.Context) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return nil
	}
	token := strings.TrimSpace(t.cfg.Telegram.Token)
	if token == "" {
		return errors.New("delivery: telegram token is not set")
	}
	if t.cfg.Telegram.ChatID == 0 {
		return errors.New("delivery: telegram chat_id is not set")
	}
	bot, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return fmt.Errorf("delivery: telegram connect: %w", err)
	}
	t.bot = bot
	t.log.Info("telegram delivery ready", logx.String("bot", bot.Me.Username))
	return nil
}

func (t *Telegram) Deliver(ctx context.Context, n Notification) error {
	t.mu.Lock()
	bot := t.bot
	t.mu.Unlock()
	if bot == nil {
		return errors.New("delivery: channel not initialized")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := bot.Send(tele.ChatID(t.cfg.Telegram.ChatID), formatNotification(n))
	if err != nil {
		t.log.Warn("notification send failed",
			logx.String("entity_id", n.EntityID),
			logx.Err(err),
		)
		return err
	}
	t.log.Debug("notification sent",
		logx.String("entity_id", n.EntityID),
		logx.String("kind", string(n.Kind)),
	)
	return nil
}

func formatNotification(n Notification) string {
	prefix := "🔔"
	if n.Kind == model.KindAlarm {
		prefix = "⏰"
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(" ")
	b.WriteString(n.Title)
	if n.Body != "" {
		b.WriteString("\n")
		b.WriteString(n.Body)
	}
	if !n.At.IsZero() {
		b.WriteString("\n")
		b.WriteString(n.At.Format(time.Kitchen))
	}
	return b.String()
}
