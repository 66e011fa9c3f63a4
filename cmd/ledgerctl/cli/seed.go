package cli

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// ChartAccount is one row of the starter chart.
type ChartAccount struct {
	Code string
	Name string
	Type accounts.AccountType
}

// DefaultChart covers every auto-posting role plus the tax and equity
// accounts a new ledger needs.
var DefaultChart = []ChartAccount{
	{mappings.DefaultCodes[mappings.RoleCash], "Cash", accounts.AccountTypeAsset},
	{mappings.DefaultCodes[mappings.RoleReceivable], "Accounts Receivable", accounts.AccountTypeAsset},
	{mappings.DefaultCodes[mappings.RoleInventory], "Inventory", accounts.AccountTypeAsset},
	{"1400", "Input Tax Receivable", accounts.AccountTypeAsset},
	{mappings.DefaultCodes[mappings.RolePayable], "Accounts Payable", accounts.AccountTypeLiability},
	{"2200", "Output Tax Payable", accounts.AccountTypeLiability},
	{"3000", "Owner's Equity", accounts.AccountTypeEquity},
	{"3100", "Retained Earnings", accounts.AccountTypeEquity},
	{mappings.DefaultCodes[mappings.RoleSalesRevenue], "Sales Revenue", accounts.AccountTypeRevenue},
	{mappings.DefaultCodes[mappings.RoleCOGS], "Cost of Goods Sold", accounts.AccountTypeExpense},
	{"6000", "Operating Expenses", accounts.AccountTypeExpense},
	{mappings.DefaultCodes[mappings.RoleSuspense], "Suspense", accounts.AccountTypeAsset},
}

// AccountStore is the subset of accounts.Service used for seeding.
type AccountStore interface {
	GetByCode(ctx context.Context, code string) (accounts.Account, error)
	Create(ctx context.Context, in accounts.CreateInput) (accounts.Account, error)
}

// SeedResult reports which codes were inserted and which already existed.
type SeedResult struct {
	Created  []string
	Existing []string
}

// SeedChart inserts any account of chart missing from store. Re-running it is
// safe.
func SeedChart(ctx context.Context, store AccountStore, chart []ChartAccount) (SeedResult, error) {
	var res SeedResult
	for _, row := range chart {
		_, err := store.GetByCode(ctx, row.Code)
		if err == nil {
			res.Existing = append(res.Existing, row.Code)
			continue
		}
		if !errors.Is(err, shared.ErrAccountNotFound) {
			return res, err
		}
		if _, err := store.Create(ctx, accounts.CreateInput{Code: row.Code, Name: row.Name, Type: row.Type}); err != nil {
			return res, err
		}
		res.Created = append(res.Created, row.Code)
	}
	return res, nil
}
