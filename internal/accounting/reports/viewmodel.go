package reports

import "time"

// TrialBalanceReport wraps the trial balance with its scope.
type TrialBalanceReport struct {
	Scope       Scope     `json:"scope"`
	GeneratedAt time.Time `json:"generated_at"`
	TrialBalance
}

// BalanceSheetReport wraps the balance sheet with its scope.
type BalanceSheetReport struct {
	Scope       Scope     `json:"scope"`
	GeneratedAt time.Time `json:"generated_at"`
	BalanceSheet
}

// IncomeStatementReport wraps the income statement with its scope.
type IncomeStatementReport struct {
	Scope       Scope     `json:"scope"`
	GeneratedAt time.Time `json:"generated_at"`
	IncomeStatement
}

// DashboardReport wraps the dashboard summary with its scope.
type DashboardReport struct {
	Scope       Scope     `json:"scope"`
	GeneratedAt time.Time `json:"generated_at"`
	Dashboard
}
