package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
)

// FiscalYear is a named accounting year. At most one year is active.
type FiscalYear struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	IsClosed  bool      `json:"is_closed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contains reports whether date falls inside the year, inclusive.
func (y FiscalYear) Contains(date time.Time) bool {
	return within(date, y.StartDate, y.EndDate)
}

// FinancialPeriod is a sub-range of a fiscal year that can be closed.
type FinancialPeriod struct {
	ID           int64        `json:"id"`
	FiscalYearID int64        `json:"fiscal_year_id"`
	Name         string       `json:"name"`
	StartDate    time.Time    `json:"start_date"`
	EndDate      time.Time    `json:"end_date"`
	Status       PeriodStatus `json:"status"`
	ClosedBy     *int64       `json:"closed_by,omitempty"`
	ClosedAt     *time.Time   `json:"closed_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Covers reports whether date falls inside the period, inclusive.
func (p FinancialPeriod) Covers(date time.Time) bool {
	return within(date, p.StartDate, p.EndDate)
}

// IsClosed reports whether postings into the period are blocked.
func (p FinancialPeriod) IsClosed() bool {
	return p.Status == PeriodStatusClosed
}

// CheckPostable applies the posting guard for an entry of year dated date.
// years and periods hold every fiscal year and period covering date,
// whichever year they belong to, since year ranges may overlap. Dates outside
// every period are allowed.
func CheckPostable(year FiscalYear, years []FiscalYear, periods []FinancialPeriod, date time.Time) error {
	if !year.Contains(date) {
		return fmt.Errorf("%w: %s not in %s", shared.ErrDateOutsideFiscalYear, DateOnly(date).Format(time.DateOnly), year.Name)
	}
	if year.IsClosed {
		return shared.ErrFiscalYearClosed
	}
	for _, y := range years {
		if y.IsClosed && y.Contains(date) {
			return fmt.Errorf("%w: %s", shared.ErrFiscalYearClosed, y.Name)
		}
	}
	for _, p := range periods {
		if p.IsClosed() && p.Covers(date) {
			return fmt.Errorf("%w: %s", shared.ErrPeriodClosed, p.Name)
		}
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func within(date, start, end time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(start)) && !d.After(DateOnly(end))
}
