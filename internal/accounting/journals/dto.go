package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// LineInput describes a journal line for a draft entry.
type LineInput struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty" validate:"max=255"`
	Reference   string          `json:"reference,omitempty" validate:"max=100"`
}

// Validate enforces the one-sided rule: exactly one of debit/credit positive,
// neither negative, at most two decimal places.
func (l LineInput) Validate(index int) error {
	switch {
	case l.AccountID <= 0:
		return &shared.LineError{Index: index, Reason: "account required"}
	case l.Debit.IsNegative() || l.Credit.IsNegative():
		return &shared.LineError{Index: index, Reason: "amounts cannot be negative"}
	case l.Debit.IsPositive() && l.Credit.IsPositive():
		return &shared.LineError{Index: index, Reason: "cannot be both debit and credit"}
	case l.Debit.IsZero() && l.Credit.IsZero():
		return &shared.LineError{Index: index, Reason: "debit or credit required"}
	case !l.Debit.Equal(shared.RoundMoney(l.Debit)) || !l.Credit.Equal(shared.RoundMoney(l.Credit)):
		return &shared.LineError{Index: index, Reason: "amounts limited to two decimal places"}
	}
	return nil
}

// ValidateLines checks every line and reports all failures together.
func ValidateLines(lines []LineInput) error {
	var err error
	for i, l := range lines {
		err = multierr.Append(err, l.Validate(i))
	}
	return err
}

// CreateEntryInput groups fields required to create a draft entry. The
// journal is resolved by id or, failing that, by name (created on demand).
type CreateEntryInput struct {
	JournalID       int64       `json:"journal_id"`
	JournalName     string      `json:"journal_name"`
	FiscalYearID    *int64      `json:"fiscal_year_id,omitempty"`
	EntryNumber     string      `json:"entry_number,omitempty"`
	Date            time.Time   `json:"date"`
	Description     string      `json:"description"`
	Reference       string      `json:"reference,omitempty"`
	OrderID         *int64      `json:"order_id,omitempty"`
	PurchaseOrderID *int64      `json:"purchase_order_id,omitempty"`
	SourceModule    string      `json:"source_module,omitempty"`
	SourceID        *uuid.UUID  `json:"source_id,omitempty"`
	ReversalOfID    *int64      `json:"-"`
	CreatedBy       int64       `json:"-"`
	Lines           []LineInput `json:"lines"`
}

// Normalize trims free-text fields.
func (in *CreateEntryInput) Normalize() {
	in.JournalName = strings.TrimSpace(in.JournalName)
	in.EntryNumber = strings.TrimSpace(in.EntryNumber)
	in.Description = strings.TrimSpace(in.Description)
	in.Reference = strings.TrimSpace(in.Reference)
	in.SourceModule = strings.TrimSpace(in.SourceModule)
}

// Validate checks the header and every line.
func (in CreateEntryInput) Validate() error {
	var err error
	if in.JournalID == 0 && in.JournalName == "" {
		err = multierr.Append(err, fmt.Errorf("%w: journal required", shared.ErrValidation))
	}
	if in.Date.IsZero() {
		err = multierr.Append(err, fmt.Errorf("%w: entry date required", shared.ErrValidation))
	}
	if in.SourceID != nil && in.SourceModule == "" {
		err = multierr.Append(err, fmt.Errorf("%w: source module required with source id", shared.ErrValidation))
	}
	return multierr.Append(err, ValidateLines(in.Lines))
}

// CreateJournalInput describes a new journal.
type CreateJournalInput struct {
	Code        string `json:"code" validate:"required,max=50"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description,omitempty"`
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID int64
	ActorID int64
	Memo    string
	Date    *time.Time
}

// JournalCode derives a stable code from a journal name.
func JournalCode(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), "_"))
}
