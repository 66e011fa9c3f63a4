package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

// IncomeStatement contains the structured output for the report.
type IncomeStatement struct {
	Revenue   Section         `json:"revenue"`
	Expense   Section         `json:"expense"`
	NetIncome decimal.Decimal `json:"net_income"`
}

// BuildIncomeStatement aggregates accounts into revenue and expense sections.
func BuildIncomeStatement(balances []AccountBalance) IncomeStatement {
	revenue := newSection("revenue")
	expense := newSection("expenses")

	for _, acc := range balances {
		switch acc.Type {
		case accounts.AccountTypeRevenue:
			revenue.add(acc)
		case accounts.AccountTypeExpense:
			expense.add(acc)
		}
	}
	revenue.sort()
	expense.sort()

	return IncomeStatement{
		Revenue:   revenue,
		Expense:   expense,
		NetIncome: revenue.Total.Sub(expense.Total),
	}
}
