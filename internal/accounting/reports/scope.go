package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CalendarPort exposes the fiscal calendar lookups reports depend on.
type CalendarPort interface {
	GetFiscalYear(ctx context.Context, id int64) (periods.FiscalYear, error)
	ActiveFiscalYear(ctx context.Context) (periods.FiscalYear, error)
	GetPeriod(ctx context.Context, id int64) (periods.FinancialPeriod, error)
}

// ScopeRequest selects the fiscal year and period a report is labelled with.
type ScopeRequest struct {
	FiscalYearID *int64
	PeriodID     *int64
}

func (r ScopeRequest) token() string {
	return idToken(r.FiscalYearID) + ":" + idToken(r.PeriodID)
}

func idToken(id *int64) string {
	if id == nil {
		return "all"
	}
	return strconv.FormatInt(*id, 10)
}

// Scope is the resolved reporting window.
type Scope struct {
	FiscalYearID *int64    `json:"fiscal_year_id,omitempty"`
	FiscalYear   string    `json:"fiscal_year,omitempty"`
	PeriodID     *int64    `json:"period_id,omitempty"`
	Period       string    `json:"period,omitempty"`
	AsOf         time.Time `json:"as_of"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Label        string    `json:"label"`
}

// resolveScope picks the as-of date from the period, then the year, then today.
// With no explicit year the active one is used when present.
func resolveScope(ctx context.Context, calendar CalendarPort, req ScopeRequest, now time.Time) (Scope, error) {
	today := periods.DateOnly(now)
	var (
		year periods.FiscalYear
		err  error
	)
	switch {
	case req.FiscalYearID != nil:
		year, err = calendar.GetFiscalYear(ctx, *req.FiscalYearID)
		if err != nil {
			return Scope{}, err
		}
	case req.PeriodID != nil:
	default:
		year, err = calendar.ActiveFiscalYear(ctx)
		if errors.Is(err, shared.ErrNoActiveFiscalYear) {
			return Scope{AsOf: today, Start: today, End: today, Label: "As of " + today.Format(time.DateOnly)}, nil
		}
		if err != nil {
			return Scope{}, err
		}
	}

	if req.PeriodID != nil {
		period, err := calendar.GetPeriod(ctx, *req.PeriodID)
		if err != nil {
			return Scope{}, err
		}
		if year.ID == 0 {
			if year, err = calendar.GetFiscalYear(ctx, period.FiscalYearID); err != nil {
				return Scope{}, err
			}
		}
		if period.FiscalYearID != year.ID {
			return Scope{}, fmt.Errorf("%w: period %d is not in fiscal year %d", shared.ErrPeriodNotFound, period.ID, year.ID)
		}
		yearID, periodID := year.ID, period.ID
		return Scope{
			FiscalYearID: &yearID,
			FiscalYear:   year.Name,
			PeriodID:     &periodID,
			Period:       period.Name,
			AsOf:         periods.DateOnly(period.EndDate),
			Start:        periods.DateOnly(period.StartDate),
			End:          periods.DateOnly(period.EndDate),
			Label:        year.Name + " / " + period.Name,
		}, nil
	}

	yearID := year.ID
	return Scope{
		FiscalYearID: &yearID,
		FiscalYear:   year.Name,
		AsOf:         periods.DateOnly(year.EndDate),
		Start:        periods.DateOnly(year.StartDate),
		End:          periods.DateOnly(year.EndDate),
		Label:        year.Name,
	}, nil
}
