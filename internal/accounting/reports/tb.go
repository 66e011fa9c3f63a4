package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// AccountBalance is an active account with its current balance.
type AccountBalance struct {
	ID      int64                `json:"id"`
	Code    string               `json:"code"`
	Name    string               `json:"name"`
	Type    accounts.AccountType `json:"type"`
	Balance decimal.Decimal      `json:"balance"`
}

// GroupKey returns a key used for grouping trial balance rows.
func (a AccountBalance) GroupKey() string {
	if idx := strings.Index(a.Code, "."); idx > 0 {
		return a.Code[:idx]
	}
	if len(a.Code) >= 2 {
		return a.Code[:2]
	}
	return a.Code
}

// Columns places the balance in the debit or credit column. A balance on the
// account's normal side lands in that column; a negative one flips sides.
func (a AccountBalance) Columns() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	normalDebit := accounts.NormalBalanceSide(a.Type) == accounts.SideDebit
	positive := a.Balance.IsPositive()
	switch {
	case normalDebit == positive:
		debit = a.Balance.Abs()
	default:
		credit = a.Balance.Abs()
	}
	return debit, credit
}

// TrialBalanceRow represents a row inside a trial balance group.
type TrialBalanceRow struct {
	Code   string               `json:"code"`
	Name   string               `json:"name"`
	Type   accounts.AccountType `json:"type"`
	Debit  decimal.Decimal      `json:"debit"`
	Credit decimal.Decimal      `json:"credit"`
}

// TrialBalanceGroup aggregates rows by code prefix.
type TrialBalanceGroup struct {
	Key    string            `json:"key"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalance lists every non-zero account in debit/credit columns.
type TrialBalance struct {
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Balanced    bool                `json:"balanced"`
}

// BuildTrialBalance converts account balances into grouped trial balance data.
func BuildTrialBalance(balances []AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, acc := range balances {
		if acc.Balance.IsZero() {
			continue
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		debit, credit := acc.Columns()
		grp.Rows = append(grp.Rows, TrialBalanceRow{Code: acc.Code, Name: acc.Name, Type: acc.Type, Debit: debit, Credit: credit})
		grp.Debit = grp.Debit.Add(debit)
		grp.Credit = grp.Credit.Add(credit)
	}

	sort.Strings(keys)
	result := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool {
			return grp.Rows[i].Code < grp.Rows[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	result.Balanced = result.TotalDebit.Equal(result.TotalCredit)
	return result
}
