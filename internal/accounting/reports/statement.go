package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// StatementType names a financial statement that can be snapshotted.
type StatementType string

const (
	StatementTrialBalance    StatementType = "trial_balance"
	StatementBalanceSheet    StatementType = "balance_sheet"
	StatementIncomeStatement StatementType = "income_statement"
)

// Valid reports whether t can be rendered.
func (t StatementType) Valid() bool {
	switch t {
	case StatementTrialBalance, StatementBalanceSheet, StatementIncomeStatement:
		return true
	}
	return false
}

// Label is the human title of the statement type.
func (t StatementType) Label() string {
	switch t {
	case StatementTrialBalance:
		return "Trial Balance"
	case StatementBalanceSheet:
		return "Balance Sheet"
	case StatementIncomeStatement:
		return "Income Statement"
	}
	return string(t)
}

// FinancialStatement is a persisted rendering of a report. Data holds the
// report exactly as it was served at generation time.
type FinancialStatement struct {
	ID            int64           `json:"id"`
	Type          StatementType   `json:"statement_type"`
	Title         string          `json:"title"`
	FiscalYearID  int64           `json:"fiscal_year_id"`
	PeriodID      *int64          `json:"period_id,omitempty"`
	AsOf          time.Time       `json:"as_of_date"`
	Notes         string          `json:"notes,omitempty"`
	Data          json.RawMessage `json:"data"`
	LedgerVersion int64           `json:"ledger_version"`
	GeneratedBy   *int64          `json:"generated_by,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// SnapshotInput selects the statement to persist.
type SnapshotInput struct {
	Type    StatementType
	Title   string
	Notes   string
	Scope   ScopeRequest
	ActorID int64
}

// StatementFilter narrows statement listings.
type StatementFilter struct {
	FiscalYearID *int64
	Type         StatementType
}

// Snapshot renders a statement from current balances and stores it. Snapshots
// bypass the cache and record the ledger version they were computed at or after.
func (s *Service) Snapshot(ctx context.Context, in SnapshotInput) (FinancialStatement, error) {
	if !in.Type.Valid() {
		return FinancialStatement{}, fmt.Errorf("%w: unknown statement type %q", shared.ErrValidation, in.Type)
	}
	version, err := s.repo.LedgerVersion(ctx)
	if err != nil {
		return FinancialStatement{}, err
	}
	var (
		report any
		scope  Scope
	)
	switch in.Type {
	case StatementTrialBalance:
		r, err := load(ctx, s, in.Scope, trialBalanceReport)
		if err != nil {
			return FinancialStatement{}, err
		}
		report, scope = r, r.Scope
	case StatementBalanceSheet:
		r, err := load(ctx, s, in.Scope, balanceSheetReport)
		if err != nil {
			return FinancialStatement{}, err
		}
		report, scope = r, r.Scope
	case StatementIncomeStatement:
		r, err := load(ctx, s, in.Scope, incomeStatementReport)
		if err != nil {
			return FinancialStatement{}, err
		}
		report, scope = r, r.Scope
	}
	if scope.FiscalYearID == nil {
		return FinancialStatement{}, fmt.Errorf("%w: snapshots need a fiscal year", shared.ErrNoActiveFiscalYear)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return FinancialStatement{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = in.Type.Label() + " - " + scope.Label
	}
	var generatedBy *int64
	if in.ActorID != 0 {
		generatedBy = &in.ActorID
	}
	return s.repo.InsertStatement(ctx, FinancialStatement{
		Type:          in.Type,
		Title:         title,
		FiscalYearID:  *scope.FiscalYearID,
		PeriodID:      scope.PeriodID,
		AsOf:          scope.AsOf,
		Notes:         strings.TrimSpace(in.Notes),
		Data:          data,
		LedgerVersion: version,
		GeneratedBy:   generatedBy,
		GeneratedAt:   s.now().UTC(),
	})
}

// ListSnapshots returns stored statements, newest as-of date first.
func (s *Service) ListSnapshots(ctx context.Context, filter StatementFilter) ([]FinancialStatement, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown statement type %q", shared.ErrValidation, filter.Type)
	}
	return s.repo.ListStatements(ctx, filter)
}

// GetSnapshot loads one stored statement.
func (s *Service) GetSnapshot(ctx context.Context, id int64) (FinancialStatement, error) {
	return s.repo.GetStatement(ctx, id)
}
