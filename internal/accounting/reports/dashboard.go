package reports

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// Dashboard is the finance landing summary.
type Dashboard struct {
	AccountsCount int             `json:"accounts_count"`
	Receivable    decimal.Decimal `json:"receivable"`
	Payable       decimal.Decimal `json:"payable"`
	Revenue       decimal.Decimal `json:"revenue"`
	Expense       decimal.Decimal `json:"expense"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
}

// BuildDashboard sums receivable assets, payable liabilities, revenue and
// expense balances. Receivable and payable accounts are recognised by name.
func BuildDashboard(balances []AccountBalance) Dashboard {
	d := Dashboard{
		AccountsCount: len(balances),
		Receivable:    decimal.Zero,
		Payable:       decimal.Zero,
		Revenue:       decimal.Zero,
		Expense:       decimal.Zero,
	}
	for _, acc := range balances {
		name := strings.ToLower(acc.Name)
		switch acc.Type {
		case accounts.AccountTypeAsset:
			if strings.Contains(name, "receivable") {
				d.Receivable = d.Receivable.Add(acc.Balance)
			}
		case accounts.AccountTypeLiability:
			if strings.Contains(name, "payable") {
				d.Payable = d.Payable.Add(acc.Balance)
			}
		case accounts.AccountTypeRevenue:
			d.Revenue = d.Revenue.Add(acc.Balance)
		case accounts.AccountTypeExpense:
			d.Expense = d.Expense.Add(acc.Balance)
		}
	}
	d.ProfitLoss = d.Revenue.Sub(d.Expense)
	return d
}
