package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const ledgerEventModule = "ledger.event"

// EventHandler posts the journal entry for an event.
type EventHandler interface {
	Handle(ctx context.Context, evt integration.Event) (*journals.JournalEntry, error)
}

// Enqueuer is the subset of asynq.Client used by EventPublisher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventPublisher is an integration.Dispatcher that hands events to the
// worker instead of posting them in the request.
type EventPublisher struct {
	client Enqueuer
	logger *slog.Logger
}

// NewEventPublisher constructs the publisher.
func NewEventPublisher(client Enqueuer, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{client: client, logger: logger}
}

// Dispatch enqueues evt. Re-publishing an already queued event is a no-op.
func (p *EventPublisher) Dispatch(ctx context.Context, evt integration.Event) error {
	if p == nil || p.client == nil {
		return errors.New("event publisher: not configured")
	}
	task, err := NewLedgerEventTask(evt)
	if err != nil {
		return err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		p.logger.Debug("ledger event already queued", slog.String("source", evt.SourceKey()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", evt.EventName(), err)
	}
	p.logger.Debug("ledger event queued", slog.String("event", evt.EventName()), slog.String("task_id", info.ID))
	return nil
}

// LedgerEventJob consumes TaskLedgerEvent tasks.
type LedgerEventJob struct {
	Handler EventHandler
	Keys    shared.KeyClaimer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerEventJob wires the consumer. keys may be nil, in which case
// redelivery relies on the source-document lookup inside the handler.
func NewLedgerEventJob(handler EventHandler, keys shared.KeyClaimer, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerEventJob {
	return &LedgerEventJob{Handler: handler, Keys: keys, Logger: logger, Metrics: metrics}
}

// Handle decodes and posts the event.
func (j *LedgerEventJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Handler == nil {
		return errors.New("ledger event: handler not configured")
	}
	evt, err := integration.Decode(t.Payload())
	if err != nil {
		j.logger().Error("undecodable ledger event", slog.Any("error", err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskLedgerEvent)
	logger := j.logger().With(slog.String("event", evt.EventName()), slog.String("source", evt.SourceKey()))

	err = shared.Once(ctx, j.Keys, evt.SourceKey(), ledgerEventModule, func(ctx context.Context) error {
		entry, err := j.Handler.Handle(ctx, evt)
		if err != nil {
			return err
		}
		if entry != nil {
			logger.Info("ledger event posted", slog.Int64("entry_id", entry.ID))
		}
		return nil
	})
	if err != nil {
		logger.Warn("ledger event failed", slog.Any("error", err))
	}
	return tracker.End(err)
}

func (j *LedgerEventJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
