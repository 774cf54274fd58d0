package delivery

import (
	"context"

	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// LogSink writes notifications to the log. Used when no transport is
// configured and as the sink in tests.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) EnsureChannel(ctx context.Context) error {
	_ = ctx
	return nil
}

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	_ = ctx
	s.log.Info("notification",
		logx.String("kind", string(n.Kind)),
		logx.String("entity_id", n.EntityID),
		logx.String("title", n.Title),
		logx.Time("at", n.At),
	)
	return nil
}
