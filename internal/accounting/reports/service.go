package reports

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Service renders the financial statements from current account balances.
type Service struct {
	repo     Repository
	calendar CalendarPort
	cache    *Cache
	group    singleflight.Group
	now      func() time.Time
}

// NewService wires the reports service. cache may be nil.
func NewService(repo Repository, calendar CalendarPort, cache *Cache) *Service {
	return &Service{repo: repo, calendar: calendar, cache: cache, now: time.Now}
}

// WithNow overrides the clock in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// TrialBalance lists active non-zero accounts in debit and credit columns.
func (s *Service) TrialBalance(ctx context.Context, req ScopeRequest) (TrialBalanceReport, error) {
	return render(ctx, s, string(StatementTrialBalance), req, trialBalanceReport)
}

// BalanceSheet renders assets against liabilities and equity.
func (s *Service) BalanceSheet(ctx context.Context, req ScopeRequest) (BalanceSheetReport, error) {
	return render(ctx, s, string(StatementBalanceSheet), req, balanceSheetReport)
}

// IncomeStatement renders revenue less expenses.
func (s *Service) IncomeStatement(ctx context.Context, req ScopeRequest) (IncomeStatementReport, error) {
	return render(ctx, s, string(StatementIncomeStatement), req, incomeStatementReport)
}

func trialBalanceReport(scope Scope, balances []AccountBalance, at time.Time) TrialBalanceReport {
	return TrialBalanceReport{Scope: scope, GeneratedAt: at, TrialBalance: BuildTrialBalance(balances)}
}

func balanceSheetReport(scope Scope, balances []AccountBalance, at time.Time) BalanceSheetReport {
	return BalanceSheetReport{Scope: scope, GeneratedAt: at, BalanceSheet: BuildBalanceSheet(balances)}
}

func incomeStatementReport(scope Scope, balances []AccountBalance, at time.Time) IncomeStatementReport {
	return IncomeStatementReport{Scope: scope, GeneratedAt: at, IncomeStatement: BuildIncomeStatement(balances)}
}

// Dashboard renders the finance summary for the active year.
func (s *Service) Dashboard(ctx context.Context) (DashboardReport, error) {
	return render(ctx, s, "dashboard", ScopeRequest{}, func(scope Scope, balances []AccountBalance, at time.Time) DashboardReport {
		return DashboardReport{Scope: scope, GeneratedAt: at, Dashboard: BuildDashboard(balances)}
	})
}

// render resolves scope and balances concurrently, then caches the built
// report under the current ledger version. The version is read before the
// balances, so a cached report is never older than its key. Concurrent
// callers for the same key share one load.
func render[T any](ctx context.Context, s *Service, kind string, req ScopeRequest, build func(Scope, []AccountBalance, time.Time) T) (T, error) {
	var zero T
	version, err := s.repo.LedgerVersion(ctx)
	if err != nil {
		return zero, err
	}
	key := s.cache.Key(version, "reports", kind, req.token())
	v, err, _ := s.group.Do(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return load(ctx, s, req, build)
		})
		return out, err
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func load[T any](ctx context.Context, s *Service, req ScopeRequest, build func(Scope, []AccountBalance, time.Time) T) (T, error) {
	var (
		zero     T
		scope    Scope
		balances []AccountBalance
	)
	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scope, err = resolveScope(gctx, s.calendar, req, now)
		return err
	})
	g.Go(func() error {
		var err error
		balances, err = s.repo.ActiveBalances(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return zero, err
	}
	return build(scope, balances, now.UTC()), nil
}
