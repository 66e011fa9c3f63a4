package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	events []integration.Event
	err    error
}

func (h *recordingHandler) Handle(_ context.Context, evt integration.Event) (*journals.JournalEntry, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.events = append(h.events, evt)
	return &journals.JournalEntry{ID: int64(len(h.events))}, nil
}

type memoryKeys struct {
	claimed map[string]bool
}

func (k *memoryKeys) CheckAndInsert(_ context.Context, key, module string) error {
	if k.claimed[module+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	k.claimed[module+"/"+key] = true
	return nil
}

func (k *memoryKeys) Delete(_ context.Context, key, module string) error {
	delete(k.claimed, module+"/"+key)
	return nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
	seen  map[string]bool
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	evt, err := integration.Decode(task.Payload())
	if err != nil {
		return nil, err
	}
	if c.seen[evt.SourceKey()] {
		return nil, asynq.ErrTaskIDConflict
	}
	c.seen[evt.SourceKey()] = true
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: evt.SourceKey(), Queue: QueueLedger}, nil
}

func billEvent() integration.BillApproved {
	return integration.BillApproved{
		BillID:           42,
		BillNumber:       "BILL-2024-00042",
		VendorName:       "Acme Supplies",
		PayableAccountID: 2000,
		BillDate:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines:            []integration.DocumentLine{{AccountID: 5000, Amount: decimal.RequireFromString("250.00")}},
		Total:            decimal.RequireFromString("250.00"),
	}
}

func TestEventPublisherQueuesOncePerSource(t *testing.T) {
	enq := &captureEnqueuer{seen: map[string]bool{}}
	pub := NewEventPublisher(enq, quietLogger())

	require.NoError(t, pub.Dispatch(context.Background(), billEvent()))
	require.NoError(t, pub.Dispatch(context.Background(), billEvent()))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskLedgerEvent, enq.tasks[0].Type())
}

func TestLedgerEventJobPostsDecodedEvent(t *testing.T) {
	handler := &recordingHandler{}
	keys := &memoryKeys{claimed: map[string]bool{}}
	job := NewLedgerEventJob(handler, keys, quietLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewLedgerEventTask(billEvent())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, handler.events, 1, "redelivery must not post twice")
	got, ok := handler.events[0].(integration.BillApproved)
	require.True(t, ok)
	assert.Equal(t, "BILL-2024-00042", got.BillNumber)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("250")))
}

func TestLedgerEventJobReleasesKeyOnFailure(t *testing.T) {
	handler := &recordingHandler{err: errors.New("database unavailable")}
	keys := &memoryKeys{claimed: map[string]bool{}}
	job := NewLedgerEventJob(handler, keys, quietLogger(), nil)

	task, err := NewLedgerEventTask(billEvent())
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
	assert.Empty(t, keys.claimed)

	handler.err = nil
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Len(t, handler.events, 1)
}

func TestLedgerEventJobSkipsRetryOnGarbage(t *testing.T) {
	job := NewLedgerEventJob(&recordingHandler{}, nil, quietLogger(), nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskLedgerEvent, []byte(`{"name":"nope"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubChecker struct {
	report journals.IntegrityReport
	err    error
}

func (s stubChecker) CheckIntegrity(context.Context) (journals.IntegrityReport, error) {
	return s.report, s.err
}

func TestGLIntegrityJob(t *testing.T) {
	drift := journals.IntegrityReport{
		Drift: []journals.BalanceDrift{{
			AccountID:  7,
			Code:       "1000",
			Cached:     decimal.RequireFromString("100"),
			Recomputed: decimal.RequireFromString("90"),
		}},
	}

	t.Run("healthy", func(t *testing.T) {
		job := NewGLIntegrityJob(stubChecker{}, quietLogger(), nil)
		task, err := NewGLIntegrityTask(GLIntegrityPayload{FailOnDrift: true})
		require.NoError(t, err)
		assert.NoError(t, job.Handle(context.Background(), task))
	})

	t.Run("drift reported", func(t *testing.T) {
		job := NewGLIntegrityJob(stubChecker{report: drift}, quietLogger(), nil)
		report, err := job.Run(context.Background(), GLIntegrityPayload{})
		require.NoError(t, err)
		assert.False(t, report.Healthy())
	})

	t.Run("drift fails without retry", func(t *testing.T) {
		job := NewGLIntegrityJob(stubChecker{report: drift}, quietLogger(), nil)
		task, err := NewGLIntegrityTask(GLIntegrityPayload{FailOnDrift: true})
		require.NoError(t, err)
		err = job.Handle(context.Background(), task)
		assert.ErrorIs(t, err, ErrLedgerDrift)
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("checker error retries", func(t *testing.T) {
		boom := errors.New("boom")
		job := NewGLIntegrityJob(stubChecker{err: boom}, quietLogger(), nil)
		err := job.Handle(context.Background(), asynq.NewTask(TaskGLIntegrity, nil))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})
}

type stubMarker struct {
	asOf time.Time
}

func (s *stubMarker) MarkOverdue(_ context.Context, asOf time.Time) ([]int64, error) {
	s.asOf = asOf
	return []int64{3, 4}, nil
}

func TestAROverdueJobUsesPayloadDate(t *testing.T) {
	marker := &stubMarker{}
	job := NewAROverdueJob(marker, quietLogger(), nil)
	asOf := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewAROverdueTask(AROverduePayload{AsOf: asOf})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.True(t, marker.asOf.Equal(asOf))

	job.clock = func() time.Time { return asOf.AddDate(0, 0, 1) }
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskAROverdue, nil)))
	assert.True(t, marker.asOf.Equal(asOf.AddDate(0, 0, 1)))
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestJobsHealthReportsQueues(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{
		QueueLedger: {Queue: QueueLedger, Pending: 4, Retry: 1},
	}, quietLogger()).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Queues []queueHealth `json:"queues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []queueHealth{
		{Queue: QueueLedger, Pending: 4, Retry: 1},
		{Queue: QueueDefault},
	}, body.Queues)
}
