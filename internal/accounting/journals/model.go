package journals

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// EntryStatus enumerates journal entry lifecycle values.
type EntryStatus string

const (
	EntryStatusDraft     EntryStatus = "draft"
	EntryStatusPosted    EntryStatus = "posted"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// Journal groups entries by book, e.g. "Sales Journal".
type Journal struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID              int64              `json:"id"`
	JournalID       int64              `json:"journal_id"`
	FiscalYearID    int64              `json:"fiscal_year_id"`
	EntryNumber     string             `json:"entry_number"`
	Date            time.Time          `json:"date"`
	Description     string             `json:"description"`
	Reference       string             `json:"reference,omitempty"`
	Status          EntryStatus        `json:"status"`
	OrderID         *int64             `json:"order_id,omitempty"`
	PurchaseOrderID *int64             `json:"purchase_order_id,omitempty"`
	SourceModule    string             `json:"source_module,omitempty"`
	SourceID        *uuid.UUID         `json:"source_id,omitempty"`
	ReversalOfID    *int64             `json:"reversal_of_id,omitempty"`
	CreatedBy       *int64             `json:"created_by,omitempty"`
	ApprovedBy      *int64             `json:"approved_by,omitempty"`
	PostedAt        *time.Time         `json:"posted_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Lines           []JournalEntryLine `json:"lines,omitempty"`
}

// JournalEntryLine stores a debit or credit amount for an account.
type JournalEntryLine struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entry_id"`
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TotalDebit sums the debit column.
func (e JournalEntry) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit column.
func (e JournalEntry) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// TotalAmount is the debit total.
func (e JournalEntry) TotalAmount() decimal.Decimal {
	return e.TotalDebit()
}

// IsBalanced compares totals exactly. An entry without lines is balanced.
func (e JournalEntry) IsBalanced() bool {
	return e.TotalDebit().Equal(e.TotalCredit())
}

// IsDraft reports whether lines may still change.
func (e JournalEntry) IsDraft() bool {
	return e.Status == EntryStatusDraft
}

// AccountIDs returns the distinct accounts referenced by the lines, ascending.
func (e JournalEntry) AccountIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Lines))
	ids := make([]int64, 0, len(e.Lines))
	for _, l := range e.Lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// unbalancedError describes the entry totals.
func (e JournalEntry) unbalancedError() error {
	return &shared.UnbalancedError{
		Debit:  shared.FormatMoney(e.TotalDebit()),
		Credit: shared.FormatMoney(e.TotalCredit()),
	}
}

// AccountDelta is the net balance change posting applies to one account.
type AccountDelta struct {
	AccountID   int64                `json:"account_id"`
	AccountCode string               `json:"account_code"`
	AccountType accounts.AccountType `json:"account_type"`
	Debit       decimal.Decimal      `json:"debit"`
	Credit      decimal.Decimal      `json:"credit"`
	Delta       decimal.Decimal      `json:"delta"`
	Before      decimal.Decimal      `json:"before"`
	After       decimal.Decimal      `json:"after"`
}

// ComputeDeltas folds lines into one delta per account, ordered by account id.
// Every referenced account must be present in accts.
func ComputeDeltas(lines []JournalEntryLine, accts map[int64]accounts.Account) ([]AccountDelta, error) {
	byAccount := make(map[int64]*AccountDelta)
	for _, l := range lines {
		acc, ok := accts[l.AccountID]
		if !ok {
			return nil, shared.ErrAccountNotFound
		}
		d, ok := byAccount[l.AccountID]
		if !ok {
			d = &AccountDelta{
				AccountID:   acc.ID,
				AccountCode: acc.Code,
				AccountType: acc.Type,
				Debit:       decimal.Zero,
				Credit:      decimal.Zero,
				Before:      acc.CurrentBalance,
			}
			byAccount[l.AccountID] = d
		}
		d.Debit = d.Debit.Add(l.Debit)
		d.Credit = d.Credit.Add(l.Credit)
	}
	out := make([]AccountDelta, 0, len(byAccount))
	for _, d := range byAccount {
		d.Delta = accounts.Movement(d.AccountType, d.Debit, d.Credit)
		d.After = d.Before.Add(d.Delta)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// ListFilter narrows entry listings.
type ListFilter struct {
	JournalID *int64
	Status    EntryStatus
	From      *time.Time
	To        *time.Time
	Search    string
	Page      int
	PerPage   int
}

// LedgerLine is one posted movement on an account with its running balance.
type LedgerLine struct {
	EntryID        int64           `json:"entry_id"`
	EntryNumber    string          `json:"entry_number"`
	LineID         int64           `json:"line_id"`
	Date           time.Time       `json:"date"`
	Description    string          `json:"description"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// BalanceDrift flags an account whose cached balance disagrees with its
// posted lines.
type BalanceDrift struct {
	AccountID  int64           `json:"account_id"`
	Code       string          `json:"code"`
	Cached     decimal.Decimal `json:"cached"`
	Recomputed decimal.Decimal `json:"recomputed"`
}

// IntegrityReport summarises a general ledger consistency check.
type IntegrityReport struct {
	CheckedAt         time.Time      `json:"checked_at"`
	Drift             []BalanceDrift `json:"drift"`
	UnbalancedEntries []int64        `json:"unbalanced_entries"`
}

// Healthy reports whether no problems were found.
func (r IntegrityReport) Healthy() bool {
	return len(r.Drift) == 0 && len(r.UnbalancedEntries) == 0
}
