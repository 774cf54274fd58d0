// Package delivery pushes fired notifications to the user-facing transport.
package delivery

import (
	"context"
	"time"

	"github.com/ZerennBlish/DontForgetWhy-sub001/internal/model"
)

// Notification is the displayable result of a trigger firing.
type Notification struct {
	EntityID string
	Kind     model.Kind
	Title    string
	Body     string
	At       time.Time
}

// Sink is a notification transport.
//
// EnsureChannel performs the transport's one-time setup (connecting the
// bot, verifying credentials). The lifecycle manager guards it with an
// initialization-once object, so implementations may assume at most one
// successful call.
type Sink interface {
	EnsureChannel(ctx context.Context) error
	Deliver(ctx context.Context, n Notification) error
}

// Config controls delivery.
type Config struct {
	RatePerSec int
	Telegram   TelegramConfig
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}
