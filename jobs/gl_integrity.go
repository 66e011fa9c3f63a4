package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

// ErrLedgerDrift is returned when the integrity check finds problems and the
// run was asked to fail on them.
var ErrLedgerDrift = errors.New("gl integrity: ledger drift detected")

// IntegrityChecker recomputes account balances from posted lines.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context) (journals.IntegrityReport, error)
}

// GLIntegrityJob compares cached balances with the posted journal lines.
type GLIntegrityJob struct {
	Checker IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the integrity handler.
func NewGLIntegrityJob(checker IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Checker: checker, Logger: logger, Metrics: metrics}
}

// Handle executes the check for a queued task.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
	}
	_, err := j.Run(ctx, payload)
	if errors.Is(err, ErrLedgerDrift) {
		// Drift does not heal on retry.
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// Run executes the check and logs every finding.
func (j *GLIntegrityJob) Run(ctx context.Context, payload GLIntegrityPayload) (journals.IntegrityReport, error) {
	if j == nil || j.Checker == nil {
		return journals.IntegrityReport{}, errors.New("gl integrity: handler not configured")
	}
	logger := j.logger().With(slog.String("job", "gl_integrity"))
	tracker := j.Metrics.Track("gl_integrity")
	start := time.Now()

	report, err := j.Checker.CheckIntegrity(ctx)
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return report, tracker.End(err)
	}
	j.Metrics.SetLedgerDrift(len(report.Drift), len(report.UnbalancedEntries))
	for _, d := range report.Drift {
		logger.Warn("account balance drift",
			slog.Int64("account_id", d.AccountID),
			slog.String("code", d.Code),
			slog.String("cached", d.Cached.StringFixed(2)),
			slog.String("recomputed", d.Recomputed.StringFixed(2)),
		)
	}
	for _, id := range report.UnbalancedEntries {
		logger.Warn("unbalanced posted entry", slog.Int64("entry_id", id))
	}
	logger.Info("GL integrity check executed",
		slog.Bool("healthy", report.Healthy()),
		slog.Duration("elapsed", time.Since(start)),
	)
	if !report.Healthy() && payload.FailOnDrift {
		return report, tracker.End(ErrLedgerDrift)
	}
	return report, tracker.End(nil)
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
