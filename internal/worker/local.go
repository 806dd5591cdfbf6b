package worker

import (
	"context"
	"fmt"
	"time"

	"meurenda/internal/amqp"
	"meurenda/internal/log"
)

const localAttempts = 3

// LocalPublisher hands change events straight to an ExportWorker in the
// same process. serve uses it in place of the broker when AMQP is not
// configured, so deletes and resets still reach the spreadsheet.
type LocalPublisher struct {
	worker     *ExportWorker
	events     chan *amqp.ChangeEvent
	retryDelay time.Duration
}

func NewLocalPublisher(w *ExportWorker, buffer int) *LocalPublisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &LocalPublisher{
		worker:     w,
		events:     make(chan *amqp.ChangeEvent, buffer),
		retryDelay: time.Second,
	}
}

// PublishChangeEvent queues ev for Run. It blocks while the queue is full
// until ctx is done.
func (p *LocalPublisher) PublishChangeEvent(ctx context.Context, ev *amqp.ChangeEvent) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue %s event: %w", ev.Type, ctx.Err())
	}
}

// Run delivers queued events in order until ctx is done. Events are
// handled with ctx, not the context they were published with.
func (p *LocalPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-p.events:
			p.deliver(ctx, ev)
		}
	}
}

// deliver retries a failed event a few times. Appends that still fail stay
// marked failed for the next startup check; deletes are logged and dropped.
func (p *LocalPublisher) deliver(ctx context.Context, ev *amqp.ChangeEvent) {
	var err error
	for attempt := 1; attempt <= localAttempts; attempt++ {
		if err = p.worker.HandleEvent(ctx, ev); err == nil {
			return
		}
		if attempt == localAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * p.retryDelay):
		}
	}
	p.worker.sl.LogError(ctx, "Giving up on change event", err, log.ComponentWorker, string(ev.Type),
		log.NewFields().WithUser(ev.OwnerID).WithRecord(ev.EntityID, "", 0, ""))
}
