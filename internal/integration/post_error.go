package integration

import (
	"errors"
	"fmt"

	accounting "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LedgerPostError indicates the document change was stored but journal
// posting failed.
type LedgerPostError struct {
	Err       error
	Retryable bool
	Message   string
}

func (e *LedgerPostError) Error() string {
	return e.Message
}

func (e *LedgerPostError) Unwrap() error {
	return e.Err
}

func WrapLedgerPostError(what string, err error) *LedgerPostError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, accounting.ErrPeriodClosed):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Ledger period closed; %s recorded but journal posting pending", what),
		}
	case errors.Is(err, accounting.ErrFiscalYearClosed):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Fiscal year closed; %s recorded but journal posting pending", what),
		}
	case errors.Is(err, accounting.ErrNoFiscalYearForDate):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("No fiscal year covers the document date; %s recorded but journal posting pending", what),
		}
	case errors.Is(err, accounting.ErrMissingAccount):
		return &LedgerPostError{
			Err:       err,
			Retryable: true,
			Message:   fmt.Sprintf("Account mapping missing; %s recorded but journal posting pending", what),
		}
	default:
		return &LedgerPostError{
			Err:       err,
			Retryable: false,
			Message:   fmt.Sprintf("Failed to post %s to ledger; journal posting pending (%s)", what, err.Error()),
		}
	}
}

// AsLedgerPending reports whether err only signals a deferred journal posting.
func AsLedgerPending(err error) (*LedgerPostError, bool) {
	var lpe *LedgerPostError
	if errors.As(err, &lpe) {
		return lpe, true
	}
	return nil, false
}
