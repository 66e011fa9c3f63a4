package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueLedger carries subledger events waiting to be posted.
	QueueLedger = "ledger"

	// TaskLedgerEvent posts the journal entry for one subledger event.
	TaskLedgerEvent = "ledger:event"
	// TaskGLIntegrity recomputes balances from posted lines.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskAROverdue flags receivables whose due date has passed.
	TaskAROverdue = "ledger:ar_overdue"
)

// NewLedgerEventTask wraps evt in an envelope task. The task id is derived
// from the event's source key so an event is queued at most once.
func NewLedgerEventTask(evt integration.Event) (*asynq.Task, error) {
	data, err := integration.Encode(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerEvent, data,
		asynq.TaskID(TaskLedgerEvent+":"+evt.SourceKey()),
		asynq.Queue(QueueLedger),
		asynq.MaxRetry(10),
		asynq.Retention(24*time.Hour),
	), nil
}

// GLIntegrityPayload configures an integrity run.
type GLIntegrityPayload struct {
	FailOnDrift bool `json:"fail_on_drift"`
}

// NewGLIntegrityTask constructs the integrity check task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.Queue(QueueDefault)), nil
}

// AROverduePayload fixes the reference date; zero means today.
type AROverduePayload struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

// NewAROverdueTask constructs the overdue receivables task.
func NewAROverdueTask(payload AROverduePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAROverdue, data, asynq.Queue(QueueDefault)), nil
}
