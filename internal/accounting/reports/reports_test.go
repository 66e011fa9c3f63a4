package reports

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func bal(code, name string, typ accounts.AccountType, amount string) AccountBalance {
	return AccountBalance{Code: code, Name: name, Type: typ, Balance: decimal.RequireFromString(amount)}
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestBuildTrialBalance(t *testing.T) {
	balances := []AccountBalance{
		bal("1100", "Bank", accounts.AccountTypeAsset, "500"),
		bal("1000", "Cash", accounts.AccountTypeAsset, "1250.50"),
		bal("1200", "Overdrawn", accounts.AccountTypeAsset, "-50"),
		bal("2100", "Accounts Payable", accounts.AccountTypeLiability, "400"),
		bal("3000", "Owner Capital", accounts.AccountTypeEquity, "1000"),
		bal("4000", "Sales", accounts.AccountTypeRevenue, "400.50"),
		bal("4100", "Dormant", accounts.AccountTypeRevenue, "0"),
		bal("5000", "Refund Expense", accounts.AccountTypeExpense, "0.00"),
	}

	tb := BuildTrialBalance(balances)
	want := TrialBalance{
		Groups: []TrialBalanceGroup{
			{Key: "10", Debit: d("1250.50"), Credit: d("0"), Rows: []TrialBalanceRow{
				{Code: "1000", Name: "Cash", Type: accounts.AccountTypeAsset, Debit: d("1250.50"), Credit: d("0")},
			}},
			{Key: "11", Debit: d("500"), Credit: d("0"), Rows: []TrialBalanceRow{
				{Code: "1100", Name: "Bank", Type: accounts.AccountTypeAsset, Debit: d("500"), Credit: d("0")},
			}},
			{Key: "12", Debit: d("0"), Credit: d("50"), Rows: []TrialBalanceRow{
				{Code: "1200", Name: "Overdrawn", Type: accounts.AccountTypeAsset, Debit: d("0"), Credit: d("50")},
			}},
			{Key: "21", Debit: d("0"), Credit: d("400"), Rows: []TrialBalanceRow{
				{Code: "2100", Name: "Accounts Payable", Type: accounts.AccountTypeLiability, Debit: d("0"), Credit: d("400")},
			}},
			{Key: "30", Debit: d("0"), Credit: d("1000"), Rows: []TrialBalanceRow{
				{Code: "3000", Name: "Owner Capital", Type: accounts.AccountTypeEquity, Debit: d("0"), Credit: d("1000")},
			}},
			{Key: "40", Debit: d("0"), Credit: d("400.50"), Rows: []TrialBalanceRow{
				{Code: "4000", Name: "Sales", Type: accounts.AccountTypeRevenue, Debit: d("0"), Credit: d("400.50")},
			}},
		},
		TotalDebit:  d("1750.50"),
		TotalCredit: d("1850.50"),
		Balanced:    false,
	}
	if diff := cmp.Diff(want, tb, decimalEqual); diff != "" {
		t.Fatalf("trial balance mismatch (-want +got):\n%s", diff)
	}
}

func TestTrialBalanceColumnsFlipNegativeCreditNormal(t *testing.T) {
	debit, credit := bal("2000", "AP", accounts.AccountTypeLiability, "-75").Columns()
	assert.True(t, debit.Equal(d("75")))
	assert.True(t, credit.IsZero())
}

func TestBuildTrialBalanceBalancedLedger(t *testing.T) {
	tb := BuildTrialBalance([]AccountBalance{
		bal("1000", "Cash", accounts.AccountTypeAsset, "100.10"),
		bal("4000", "Sales", accounts.AccountTypeRevenue, "60.05"),
		bal("2000", "Payable", accounts.AccountTypeLiability, "40.05"),
	})
	assert.True(t, tb.Balanced)
	assert.Equal(t, "100.10", tb.TotalDebit.StringFixed(2))
}

func TestBuildIncomeStatement(t *testing.T) {
	is := BuildIncomeStatement([]AccountBalance{
		bal("4000", "Sales", accounts.AccountTypeRevenue, "1200"),
		bal("5100", "Marketing", accounts.AccountTypeExpense, "200"),
		bal("5000", "COGS", accounts.AccountTypeExpense, "300"),
		bal("1000", "Cash", accounts.AccountTypeAsset, "999"),
	})
	assert.Equal(t, "Revenue", is.Revenue.Label)
	assert.Equal(t, "Expenses", is.Expense.Label)
	assert.True(t, is.Revenue.Total.Equal(d("1200")))
	assert.True(t, is.Expense.Total.Equal(d("500")))
	assert.True(t, is.NetIncome.Equal(d("700")))
	assert.Equal(t, "5000", is.Expense.Lines[0].Code)
}

func TestBuildBalanceSheet(t *testing.T) {
	bs := BuildBalanceSheet([]AccountBalance{
		bal("1000", "Cash", accounts.AccountTypeAsset, "1500"),
		bal("1100", "Receivable", accounts.AccountTypeAsset, "500"),
		bal("2000", "Payables", accounts.AccountTypeLiability, "700"),
		bal("3000", "Equity", accounts.AccountTypeEquity, "1300"),
		bal("4000", "Sales", accounts.AccountTypeRevenue, "10"),
	})
	assert.True(t, bs.Assets.Total.Equal(d("2000")))
	assert.True(t, bs.Liabilities.Total.Equal(d("700")))
	assert.True(t, bs.Equity.Total.Equal(d("1300")))
	assert.True(t, bs.TotalLiabilitiesAndEquity.Equal(d("2000")))
	assert.Equal(t, "Liabilities", bs.Liabilities.Label)
}

func TestBuildDashboard(t *testing.T) {
	dash := BuildDashboard([]AccountBalance{
		bal("1000", "Cash", accounts.AccountTypeAsset, "800"),
		bal("1200", "Accounts Receivable", accounts.AccountTypeAsset, "250"),
		bal("1210", "Other receivables", accounts.AccountTypeAsset, "50"),
		bal("2100", "Accounts Payable", accounts.AccountTypeLiability, "300"),
		bal("2200", "Accrued Wages", accounts.AccountTypeLiability, "90"),
		bal("4000", "Sales", accounts.AccountTypeRevenue, "1000"),
		bal("5000", "COGS", accounts.AccountTypeExpense, "650"),
	})
	want := Dashboard{
		AccountsCount: 7,
		Receivable:    d("300"),
		Payable:       d("300"),
		Revenue:       d("1000"),
		Expense:       d("650"),
		ProfitLoss:    d("350"),
	}
	if diff := cmp.Diff(want, dash, decimalEqual); diff != "" {
		t.Fatalf("dashboard mismatch (-want +got):\n%s", diff)
	}
}
