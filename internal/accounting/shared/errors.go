package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCode indicates an account code is already taken.
	ErrDuplicateCode = errors.New("accounting: account code already exists")
	// ErrAccountCycle indicates a parent assignment would loop the hierarchy.
	ErrAccountCycle = errors.New("accounting: account hierarchy cycle")
	// ErrAccountNotFound indicates missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrAccountInactive indicates postings against a deactivated account.
	ErrAccountInactive = errors.New("accounting: account inactive")
	// ErrAccountProtected indicates the account is still referenced.
	ErrAccountProtected = errors.New("accounting: account is referenced and cannot be deleted")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrInvalidAccountType indicates an unknown classification.
	ErrInvalidAccountType = errors.New("accounting: invalid account type")

	// ErrInvalidLine indicates a line that is not exactly one-sided.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("accounting: invalid status transition")
	// ErrEmptyEntry rejects posting an entry without lines.
	ErrEmptyEntry = fmt.Errorf("%w: journal entry has no lines", ErrInvalidStatus)
	// ErrMissingAccount indicates a well-known account code is absent.
	ErrMissingAccount = errors.New("accounting: required account missing")
	// ErrJournalNotFound indicates missing journal.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrEntryNotFound indicates missing entry.
	ErrEntryNotFound = errors.New("accounting: journal entry not found")
	// ErrLineNotFound indicates missing entry line.
	ErrLineNotFound = errors.New("accounting: journal line not found")
	// ErrDuplicateEntryNumber indicates entry number collision.
	ErrDuplicateEntryNumber = errors.New("accounting: entry number already exists")
	// ErrMappingNotFound indicates no override exists for a role.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")

	// ErrFiscalYearNotFound indicates missing fiscal year.
	ErrFiscalYearNotFound = errors.New("accounting: fiscal year not found")
	// ErrNoActiveFiscalYear indicates no year is flagged active.
	ErrNoActiveFiscalYear = errors.New("accounting: no active fiscal year")
	// ErrNoFiscalYearForDate indicates no fiscal year range contains the date.
	ErrNoFiscalYearForDate = errors.New("accounting: no fiscal year covers the entry date")
	// ErrFiscalYearClosed blocks postings into a closed year.
	ErrFiscalYearClosed = errors.New("accounting: fiscal year is closed")
	// ErrPeriodNotFound indicates missing period.
	ErrPeriodNotFound = errors.New("accounting: period not found")
	// ErrPeriodClosed blocks postings dated inside a closed period.
	ErrPeriodClosed = errors.New("accounting: period is closed")
	// ErrDuplicatePeriodName indicates the name is taken within the year.
	ErrDuplicatePeriodName = errors.New("accounting: period name already exists in fiscal year")
	// ErrInvalidDateRange indicates start after end or a range outside its year.
	ErrInvalidDateRange = errors.New("accounting: invalid date range")
	// ErrStatementNotFound indicates a missing financial statement snapshot.
	ErrStatementNotFound = errors.New("accounting: financial statement not found")
	// ErrDateOutsideFiscalYear rejects an entry dated outside its fiscal year.
	ErrDateOutsideFiscalYear = fmt.Errorf("%w: entry date outside fiscal year", ErrInvalidDateRange)
)

// MissingAccountError names the well-known code that could not be resolved.
type MissingAccountError struct {
	Code string
	Role string
}

func (e *MissingAccountError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("accounting: required account %s (%s) missing", e.Code, e.Role)
	}
	return fmt.Sprintf("accounting: required account %s missing", e.Code)
}

func (e *MissingAccountError) Unwrap() error {
	return ErrMissingAccount
}

// LineError reports why a single journal line was rejected.
type LineError struct {
	Index  int
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("accounting: line %d: %s", e.Index+1, e.Reason)
}

func (e *LineError) Unwrap() error {
	return ErrInvalidLine
}

// UnbalancedError carries the offending totals.
type UnbalancedError struct {
	Debit  string
	Credit string
}

func (e *UnbalancedError) Error() string {
	return fmt.Sprintf("accounting: journal lines must balance (debit %s, credit %s)", e.Debit, e.Credit)
}

func (e *UnbalancedError) Unwrap() error {
	return ErrUnbalanced
}
