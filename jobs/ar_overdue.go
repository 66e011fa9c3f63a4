package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// OverdueMarker flags receivables past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error)
}

// AROverdueJob runs the nightly overdue sweep.
type AROverdueJob struct {
	Marker  OverdueMarker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAROverdueJob initialises the overdue handler.
func NewAROverdueJob(marker OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *AROverdueJob {
	return &AROverdueJob{
		Marker:  marker,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *AROverdueJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Marker == nil {
		return errors.New("ar overdue: handler not configured")
	}
	var payload AROverduePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = j.clock()
	}
	tracker := j.Metrics.Track("ar_overdue")
	ids, err := j.Marker.MarkOverdue(ctx, asOf)
	if err != nil {
		j.logger().Error("ar overdue sweep failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("ar overdue sweep",
		slog.String("as_of", asOf.Format(time.DateOnly)),
		slog.Int("invoices", len(ids)),
	)
	return tracker.End(nil)
}

func (j *AROverdueJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
