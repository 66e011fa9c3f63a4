package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

type memAccounts struct {
	byCode map[string]accounts.Account
	nextID int64
}

func (m *memAccounts) GetByCode(_ context.Context, code string) (accounts.Account, error) {
	acc, ok := m.byCode[code]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (m *memAccounts) Create(_ context.Context, in accounts.CreateInput) (accounts.Account, error) {
	m.nextID++
	acc := accounts.Account{ID: m.nextID, Code: in.Code, Name: in.Name, Type: in.Type}
	m.byCode[in.Code] = acc
	return acc, nil
}

func TestSeedChartIsRepeatable(t *testing.T) {
	store := &memAccounts{byCode: map[string]accounts.Account{
		"1000": {ID: 99, Code: "1000", Name: "Petty Cash", Type: accounts.AccountTypeAsset},
	}}

	res, err := SeedChart(context.Background(), store, DefaultChart)
	require.NoError(t, err)
	assert.Equal(t, []string{"1000"}, res.Existing)
	assert.Len(t, res.Created, len(DefaultChart)-1)
	assert.Equal(t, "Petty Cash", store.byCode["1000"].Name)

	res, err = SeedChart(context.Background(), store, DefaultChart)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Existing, len(DefaultChart))
}

func TestDefaultChartCoversEveryRole(t *testing.T) {
	codes := map[string]bool{}
	for _, row := range DefaultChart {
		assert.False(t, codes[row.Code], "duplicate code %s", row.Code)
		codes[row.Code] = true
	}
	for _, role := range mappings.Roles {
		assert.True(t, codes[mappings.DefaultCodes[role]], "role %s has no account", role)
	}
}

type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func TestTriggerBuildsPayloads(t *testing.T) {
	enq := &captureEnqueuer{}
	c := &JobsCLI{client: enq}
	asOf := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	_, err := c.Trigger(context.Background(), jobs.TaskGLIntegrity, TriggerOptions{FailOnDrift: true})
	require.NoError(t, err)
	_, err = c.Trigger(context.Background(), jobs.TaskAROverdue, TriggerOptions{AsOf: asOf})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 2)

	var integrity jobs.GLIntegrityPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &integrity))
	assert.True(t, integrity.FailOnDrift)

	var overdue jobs.AROverduePayload
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &overdue))
	assert.True(t, asOf.Equal(overdue.AsOf))

	_, err = c.Trigger(context.Background(), "ledger:unknown", TriggerOptions{})
	assert.ErrorContains(t, err, "unsupported job")
	assert.Len(t, enq.tasks, 2)
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestInspectQueuesTreatsMissingQueueAsEmpty(t *testing.T) {
	c := &JobsCLI{inspector: stubInspector{
		jobs.QueueLedger: {Queue: jobs.QueueLedger, Pending: 4, Retry: 1},
	}}
	stats, err := c.InspectQueues()
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, QueueStats{Queue: jobs.QueueLedger, Pending: 4, Retry: 1}, stats[0])
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault}, stats[1])

	var buf bytes.Buffer
	require.NoError(t, writeQueueStats(&buf, stats))
	assert.Contains(t, buf.String(), "QUEUE")
	assert.Contains(t, buf.String(), jobs.QueueLedger)
}

func TestEnqueueRejectsUnknownJob(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"enqueue", "ledger:unknown"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, path := range [][]string{{"migrate"}, {"seed", "chart"}, {"integrity"}, {"enqueue"}, {"queues"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
