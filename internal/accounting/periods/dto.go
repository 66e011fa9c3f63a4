package periods

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// CreateFiscalYearInput describes a new fiscal year.
type CreateFiscalYearInput struct {
	Name      string    `json:"name" validate:"required,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Activate  bool      `json:"activate"`
	ActorID   int64     `json:"-"`
}

// Validate checks the name and date order. Overlapping years are accepted.
func (in CreateFiscalYearInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: fiscal year name required", shared.ErrValidation)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: fiscal year dates required", shared.ErrValidation)
	}
	if DateOnly(in.StartDate).After(DateOnly(in.EndDate)) {
		return fmt.Errorf("%w: start %s after end %s", shared.ErrInvalidDateRange, in.StartDate.Format(time.DateOnly), in.EndDate.Format(time.DateOnly))
	}
	return nil
}

// CreatePeriodInput describes a period inside a fiscal year.
type CreatePeriodInput struct {
	FiscalYearID int64     `json:"-"`
	Name         string    `json:"name" validate:"required,max=100"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required"`
	ActorID      int64     `json:"-"`
}

// Validate checks the name and that the range lies inside year.
func (in CreatePeriodInput) Validate(year FiscalYear) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: period name required", shared.ErrValidation)
	}
	if DateOnly(in.StartDate).After(DateOnly(in.EndDate)) {
		return fmt.Errorf("%w: period start after end", shared.ErrInvalidDateRange)
	}
	if !year.Contains(in.StartDate) || !year.Contains(in.EndDate) {
		return fmt.Errorf("%w: period outside fiscal year %s", shared.ErrInvalidDateRange, year.Name)
	}
	return nil
}
