package reports

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
)

var titleCaser = cases.Title(language.English)

// SectionLine summarises one account inside a statement section.
type SectionLine struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Section contains the accounts and total for one classification.
type Section struct {
	Label string          `json:"label"`
	Lines []SectionLine   `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func newSection(label string) Section {
	return Section{Label: titleCaser.String(label), Total: decimal.Zero}
}

func (s *Section) add(acc AccountBalance) {
	s.Lines = append(s.Lines, SectionLine{Code: acc.Code, Name: acc.Name, Amount: acc.Balance})
	s.Total = s.Total.Add(acc.Balance)
}

func (s *Section) sort() {
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].Code < s.Lines[j].Code })
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Assets                    Section         `json:"assets"`
	Liabilities               Section         `json:"liabilities"`
	Equity                    Section         `json:"equity"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet aggregates balances into assets, liabilities, and equity sections.
func BuildBalanceSheet(balances []AccountBalance) BalanceSheet {
	assets := newSection("assets")
	liabilities := newSection("liabilities")
	equity := newSection("equity")

	for _, acc := range balances {
		switch acc.Type {
		case accounts.AccountTypeAsset:
			assets.add(acc)
		case accounts.AccountTypeLiability:
			liabilities.add(acc)
		case accounts.AccountTypeEquity:
			equity.add(acc)
		}
	}
	assets.sort()
	liabilities.sort()
	equity.sort()

	return BalanceSheet{
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(equity.Total),
	}
}
