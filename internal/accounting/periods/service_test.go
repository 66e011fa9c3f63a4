package periods

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type memoryRepo struct {
	years   map[int64]FiscalYear
	periods map[int64]FinancialPeriod
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{years: map[int64]FiscalYear{}, periods: map[int64]FinancialPeriod{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	years := make(map[int64]FiscalYear, len(r.years))
	for k, v := range r.years {
		years[k] = v
	}
	periods := make(map[int64]FinancialPeriod, len(r.periods))
	for k, v := range r.periods {
		periods[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.years = years
		r.periods = periods
		return err
	}
	return nil
}

func (r *memoryRepo) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	var out []FiscalYear
	for _, y := range r.years {
		out = append(out, y)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

func (r *memoryRepo) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return (&memoryTx{repo: r}).GetFiscalYearForUpdate(ctx, id)
}

func (r *memoryRepo) ActiveFiscalYear(ctx context.Context) (FiscalYear, error) {
	for _, y := range r.years {
		if y.IsActive {
			return y, nil
		}
	}
	return FiscalYear{}, shared.ErrNoActiveFiscalYear
}

func (r *memoryRepo) ListPeriods(ctx context.Context, fiscalYearID int64) ([]FinancialPeriod, error) {
	var out []FinancialPeriod
	for _, p := range r.periods {
		if p.FiscalYearID == fiscalYearID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (r *memoryRepo) GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error) {
	return (&memoryTx{repo: r}).GetPeriodForUpdate(ctx, id)
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	tx.repo.nextID++
	y := FiscalYear{ID: tx.repo.nextID, Name: in.Name, StartDate: DateOnly(in.StartDate), EndDate: DateOnly(in.EndDate)}
	tx.repo.years[y.ID] = y
	return y, nil
}

func (tx *memoryTx) GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	y, ok := tx.repo.years[id]
	if !ok {
		return FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return y, nil
}

func (tx *memoryTx) DeactivateOtherYears(ctx context.Context, id int64) error {
	for k, y := range tx.repo.years {
		if k != id {
			y.IsActive = false
			tx.repo.years[k] = y
		}
	}
	return nil
}

func (tx *memoryTx) SetFiscalYearActive(ctx context.Context, id int64, active bool) error {
	y, err := tx.GetFiscalYearForUpdate(ctx, id)
	if err != nil {
		return err
	}
	y.IsActive = active
	tx.repo.years[id] = y
	return nil
}

func (tx *memoryTx) MarkFiscalYearClosed(ctx context.Context, id int64) error {
	y, err := tx.GetFiscalYearForUpdate(ctx, id)
	if err != nil {
		return err
	}
	y.IsClosed = true
	tx.repo.years[id] = y
	return nil
}

func (tx *memoryTx) PeriodNameExists(ctx context.Context, fiscalYearID int64, name string) (bool, error) {
	for _, p := range tx.repo.periods {
		if p.FiscalYearID == fiscalYearID && p.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertPeriod(ctx context.Context, in CreatePeriodInput) (FinancialPeriod, error) {
	tx.repo.nextID++
	p := FinancialPeriod{
		ID:           tx.repo.nextID,
		FiscalYearID: in.FiscalYearID,
		Name:         in.Name,
		StartDate:    DateOnly(in.StartDate),
		EndDate:      DateOnly(in.EndDate),
		Status:       PeriodStatusOpen,
	}
	tx.repo.periods[p.ID] = p
	return p, nil
}

func (tx *memoryTx) GetPeriodForUpdate(ctx context.Context, id int64) (FinancialPeriod, error) {
	p, ok := tx.repo.periods[id]
	if !ok {
		return FinancialPeriod{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (tx *memoryTx) UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus, closedBy *int64, closedAt *time.Time) error {
	p, err := tx.GetPeriodForUpdate(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	p.ClosedBy = closedBy
	p.ClosedAt = closedAt
	tx.repo.periods[id] = p
	return nil
}

func (tx *memoryTx) ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]FiscalYear, error) {
	var out []FiscalYear
	for _, y := range tx.repo.years {
		if y.Contains(date) {
			out = append(out, y)
		}
	}
	return out, nil
}

func (tx *memoryTx) ListPeriodsCovering(ctx context.Context, date time.Time) ([]FinancialPeriod, error) {
	var out []FinancialPeriod
	for _, p := range tx.repo.periods {
		if p.Covers(date) {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingAudit struct {
	logs []platformshared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log platformshared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

var testNow = time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memoryRepo, *recordingAudit) {
	t.Helper()
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, audit)
	svc.WithNow(func() time.Time { return testNow })
	return svc, repo, audit
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func createYear(t *testing.T, svc *Service, name string, start, end time.Time, activate bool) FiscalYear {
	t.Helper()
	year, err := svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{Name: name, StartDate: start, EndDate: end, Activate: activate})
	require.NoError(t, err)
	return year
}

func TestCreateFiscalYearValidatesRange(t *testing.T) {
	svc, repo, _ := newTestService(t)
	_, err := svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{Name: "FY2024", StartDate: date(2024, 12, 31), EndDate: date(2024, 1, 1)})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)
	_, err = svc.CreateFiscalYear(context.Background(), CreateFiscalYearInput{Name: "  ", StartDate: date(2024, 1, 1), EndDate: date(2024, 12, 31)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.years)
}

func TestSingleDayFiscalYear(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	year := createYear(t, svc, "Stub 2024-12-31", date(2024, 12, 31), date(2024, 12, 31), false)
	require.True(t, year.Contains(date(2024, 12, 31)))

	generated, err := svc.GenerateMonthlyPeriods(ctx, year.ID, 1)
	require.NoError(t, err)
	require.Len(t, generated, 1)
	require.Equal(t, date(2024, 12, 31), generated[0].StartDate)
	require.Equal(t, date(2024, 12, 31), generated[0].EndDate)

	require.NoError(t, svc.EnsurePostable(ctx, year.ID, date(2024, 12, 31)))
	require.ErrorIs(t, svc.EnsurePostable(ctx, year.ID, date(2025, 1, 1)), shared.ErrInvalidDateRange)
}

func TestActivatingYearDeactivatesOthers(t *testing.T) {
	svc, repo, audit := newTestService(t)
	ctx := context.Background()
	first := createYear(t, svc, "FY2023", date(2023, 1, 1), date(2023, 12, 31), true)
	second := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), false)

	active, err := svc.ActiveFiscalYear(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, active.ID)

	activated, err := svc.ActivateFiscalYear(ctx, second.ID, 9)
	require.NoError(t, err)
	require.True(t, activated.IsActive)
	require.False(t, repo.years[first.ID].IsActive)
	require.Equal(t, "fiscal_year.activate", audit.logs[len(audit.logs)-1].Action)
}

func TestActiveFiscalYearMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.ActiveFiscalYear(context.Background())
	require.ErrorIs(t, err, shared.ErrNoActiveFiscalYear)
}

func TestCreatePeriodRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	year := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), true)

	p, err := svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "Q1", StartDate: date(2024, 1, 1), EndDate: date(2024, 3, 31)})
	require.NoError(t, err)
	require.Equal(t, PeriodStatusOpen, p.Status)

	_, err = svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "Q1", StartDate: date(2024, 4, 1), EndDate: date(2024, 6, 30)})
	require.ErrorIs(t, err, shared.ErrDuplicatePeriodName)

	_, err = svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "Spill", StartDate: date(2024, 12, 1), EndDate: date(2025, 1, 31)})
	require.ErrorIs(t, err, shared.ErrInvalidDateRange)

	_, err = svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: 404, Name: "Q2", StartDate: date(2024, 4, 1), EndDate: date(2024, 6, 30)})
	require.ErrorIs(t, err, shared.ErrFiscalYearNotFound)
}

func TestGenerateMonthlyPeriodsSkipsExisting(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	year := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), true)
	_, err := svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "March 2024", StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 31)})
	require.NoError(t, err)

	created, err := svc.GenerateMonthlyPeriods(ctx, year.ID, 1)
	require.NoError(t, err)
	require.Len(t, created, 11)

	all, err := svc.ListPeriods(ctx, year.ID)
	require.NoError(t, err)
	require.Len(t, all, 12)
	require.Equal(t, "February 2024", all[1].Name)
	require.Equal(t, date(2024, 2, 29), all[1].EndDate)
}

func TestCloseAndReopenPeriod(t *testing.T) {
	svc, _, audit := newTestService(t)
	ctx := context.Background()
	year := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), true)
	p, err := svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "June 2024", StartDate: date(2024, 6, 1), EndDate: date(2024, 6, 30)})
	require.NoError(t, err)

	closed, err := svc.ClosePeriod(ctx, p.ID, 5)
	require.NoError(t, err)
	require.True(t, closed.IsClosed())
	require.Equal(t, int64(5), *closed.ClosedBy)
	require.Equal(t, testNow, *closed.ClosedAt)

	_, err = svc.ClosePeriod(ctx, p.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	require.ErrorIs(t, svc.EnsurePostable(ctx, year.ID, date(2024, 6, 15)), shared.ErrPeriodClosed)
	require.NoError(t, svc.EnsurePostable(ctx, year.ID, date(2024, 7, 1)))

	reopened, err := svc.ReopenPeriod(ctx, p.ID, 5)
	require.NoError(t, err)
	require.False(t, reopened.IsClosed())
	require.Nil(t, reopened.ClosedAt)
	require.NoError(t, svc.EnsurePostable(ctx, year.ID, date(2024, 6, 15)))
	require.Equal(t, "period.reopen", audit.logs[len(audit.logs)-1].Action)
}

func TestClosedYearBlocksPostingAndReopen(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	year := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), true)
	p, err := svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: year.ID, Name: "Dec", StartDate: date(2024, 12, 1), EndDate: date(2024, 12, 31)})
	require.NoError(t, err)
	_, err = svc.ClosePeriod(ctx, p.ID, 1)
	require.NoError(t, err)

	closed, err := svc.CloseFiscalYear(ctx, year.ID, 1)
	require.NoError(t, err)
	require.True(t, closed.IsClosed)

	require.ErrorIs(t, svc.EnsurePostable(ctx, year.ID, date(2024, 3, 1)), shared.ErrFiscalYearClosed)
	_, err = svc.ReopenPeriod(ctx, p.ID, 1)
	require.ErrorIs(t, err, shared.ErrFiscalYearClosed)
	_, err = svc.CloseFiscalYear(ctx, year.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestEnsurePostableChecksEveryYearCoveringDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	fy2024 := createYear(t, svc, "FY2024", date(2024, 1, 1), date(2024, 12, 31), false)
	fy2025 := createYear(t, svc, "FY2025", date(2025, 1, 1), date(2025, 12, 31), true)
	jan, err := svc.CreatePeriod(ctx, CreatePeriodInput{FiscalYearID: fy2024.ID, Name: "January 2024", StartDate: date(2024, 1, 1), EndDate: date(2024, 1, 31)})
	require.NoError(t, err)
	_, err = svc.ClosePeriod(ctx, jan.ID, 1)
	require.NoError(t, err)

	require.ErrorIs(t, svc.EnsurePostable(ctx, fy2025.ID, date(2024, 1, 15)), shared.ErrDateOutsideFiscalYear)
	require.ErrorIs(t, svc.EnsurePostable(ctx, fy2024.ID, date(2024, 1, 15)), shared.ErrPeriodClosed)
	require.NoError(t, svc.EnsurePostable(ctx, fy2024.ID, date(2024, 2, 1)))

	bridge := createYear(t, svc, "FY2024-25", date(2024, 7, 1), date(2025, 6, 30), false)
	_, err = svc.CloseFiscalYear(ctx, bridge.ID, 1)
	require.NoError(t, err)
	require.ErrorIs(t, svc.EnsurePostable(ctx, fy2025.ID, date(2025, 3, 1)), shared.ErrFiscalYearClosed)
	require.NoError(t, svc.EnsurePostable(ctx, fy2025.ID, date(2025, 9, 1)))
}
