package taxes

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TaxRate is a flat percentage with the accounts its postings land in.
type TaxRate struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	Rate                 decimal.Decimal `json:"rate"`
	Description          string          `json:"description,omitempty"`
	IsActive             bool            `json:"is_active"`
	SalesTaxAccountID    int64           `json:"sales_tax_account_id"`
	PurchaseTaxAccountID int64           `json:"purchase_tax_account_id"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// TaxOn returns base*rate/100 rounded half-up to cents.
func (t TaxRate) TaxOn(base decimal.Decimal) decimal.Decimal {
	return Compute(base, t.Rate)
}

// Compute applies a percentage rate to base, rounded half-up to cents.
func Compute(base, rate decimal.Decimal) decimal.Decimal {
	return base.Mul(rate).Div(hundred).Round(2)
}

func (t TaxRate) String() string {
	return t.Name + " (" + t.Rate.StringFixed(2) + "%)"
}
