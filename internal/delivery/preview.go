package delivery

import (
	"context"
	"sync/atomic"

	logx "github.com/ZerennBlish/DontForgetWhy-sub001/pkg/logx"
)

// Previewer plays a sample notification so the user can audition an entity
// before saving it. Requests are serialized by a monotonically increasing
// call id: a newer preview invalidates any earlier in-flight one, so only
// the most recent request's outcome is reported.
type Previewer struct {
	sink Sink
	log  logx.Logger
	seq  atomic.Uint64
}

func NewPreviewer(sink Sink, log logx.Logger) *Previewer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Previewer{sink: sink, log: log}
}

// Play delivers the preview. It returns nil without reporting when a newer
// preview superseded this one while the send was in flight.
func (p *Previewer) Play(ctx context.Context, n Notification) error {
	call := p.seq.Add(1)
	err := p.sink.Deliver(ctx, n)
	if p.seq.Load() != call {
		// Superseded; discard this call's outcome.
		p.log.Debug("preview superseded", logx.String("entity_id", n.EntityID))
		return nil
	}
	return err
}
