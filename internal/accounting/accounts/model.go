package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Types lists the classifications in reporting order.
var Types = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// Valid reports whether t is a known classification.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Side is the debit or credit column of a ledger.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// NormalBalanceSide returns the side on which increases are recorded for t.
func NormalBalanceSide(t AccountType) Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Movement is the signed change a debit/credit pair causes on an account of
// type t: debit-normal accounts grow with debits, the rest with credits.
func Movement(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if NormalBalanceSide(t) == SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Account models a chart of accounts node.
type Account struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	Description    string          `json:"description,omitempty"`
	IsActive       bool            `json:"is_active"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsDebitBalance reports whether the account is debit-normal.
func (a Account) IsDebitBalance() bool {
	return NormalBalanceSide(a.Type) == SideDebit
}

// ListFilter narrows account listings.
type ListFilter struct {
	Type       AccountType
	ActiveOnly bool
	ParentID   *int64
	Search     string
}
