package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusApproved      InvoiceStatus = "approved"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:         {InvoiceStatusSent, InvoiceStatusApproved, InvoiceStatusCancelled},
	InvoiceStatusSent:          {InvoiceStatusApproved, InvoiceStatusCancelled},
	InvoiceStatusApproved:      {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid, InvoiceStatusOverdue},
	InvoiceStatusOverdue:       {InvoiceStatusPartiallyPaid, InvoiceStatusPaid},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to InvoiceStatus) bool {
	for _, next := range invoiceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Collectible reports whether payments may be applied in status s.
func (s InvoiceStatus) Collectible() bool {
	return s == InvoiceStatusApproved || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// PaymentMethod enumerates how a customer paid.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodPayPal       PaymentMethod = "paypal"
	MethodStripe       PaymentMethod = "stripe"
	MethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCheck, MethodCash, MethodCreditCard, MethodPayPal, MethodStripe, MethodOther:
		return true
	}
	return false
}

// Customer is the accounting extension of a shop user.
type Customer struct {
	ID                  int64           `json:"id"`
	UserID              int64           `json:"user_id"`
	Name                string          `json:"name"`
	ReceivableAccountID int64           `json:"receivable_account_id"`
	RevenueAccountID    *int64          `json:"revenue_account_id,omitempty"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	CreditLimit         decimal.Decimal `json:"credit_limit"`
	YTDSales            decimal.Decimal `json:"ytd_sales"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// AvailableCredit is the headroom under the credit limit. A zero limit means
// no limit and reports ok=false.
func (c Customer) AvailableCredit() (decimal.Decimal, bool) {
	if !c.CreditLimit.IsPositive() {
		return decimal.Zero, false
	}
	return c.CreditLimit.Sub(c.CurrentBalance), true
}

// Invoice is a customer invoice.
type Invoice struct {
	ID             int64           `json:"id"`
	CustomerID     int64           `json:"customer_id"`
	OrderID        *int64          `json:"order_id,omitempty"`
	InvoiceNumber  string          `json:"invoice_number"`
	Reference      string          `json:"reference,omitempty"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	DueDate        time.Time       `json:"due_date"`
	Amount         decimal.Decimal `json:"amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Status         InvoiceStatus   `json:"status"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []InvoiceLine   `json:"lines,omitempty"`
}

func (i Invoice) TotalAmount() decimal.Decimal {
	return i.Amount.Add(i.TaxAmount)
}

func (i Invoice) RemainingAmount() decimal.Decimal {
	return i.TotalAmount().Sub(i.PaidAmount)
}

func (i Invoice) IsPaid() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.TotalAmount())
}

// IsOverdue reports whether a collectible invoice is past due on asOf.
func (i Invoice) IsOverdue(asOf time.Time) bool {
	if !i.Status.Collectible() {
		return false
	}
	return i.DueDate.Before(dateOnly(asOf))
}

// InvoiceLine is one billed item.
type InvoiceLine struct {
	ID          int64           `json:"id"`
	InvoiceID   int64           `json:"invoice_id"`
	Description string          `json:"description"`
	AccountID   int64           `json:"account_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRateID   *int64          `json:"tax_rate_id,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Amount is quantity times unit price, rounded to cents.
func (l InvoiceLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Round(2)
}

func (l InvoiceLine) TaxAmount() decimal.Decimal {
	return taxes.Compute(l.Amount(), l.TaxRate)
}

func (l InvoiceLine) TotalAmount() decimal.Decimal {
	return l.Amount().Add(l.TaxAmount())
}

// InvoicePayment records money received against an invoice.
type InvoicePayment struct {
	ID             int64           `json:"id"`
	InvoiceID      int64           `json:"invoice_id"`
	PaymentDate    time.Time       `json:"payment_date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"payment_method"`
	Reference      string          `json:"reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ARAgingBucket summarises outstanding receivables by age.
type ARAgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}

func (b ARAgingBucket) Total() decimal.Decimal {
	return b.Current.Add(b.Bucket30).Add(b.Bucket60).Add(b.Bucket90).Add(b.Bucket120)
}

func (b *ARAgingBucket) add(days int, amount decimal.Decimal) {
	switch {
	case days <= 0:
		b.Current = b.Current.Add(amount)
	case days <= 30:
		b.Bucket30 = b.Bucket30.Add(amount)
	case days <= 60:
		b.Bucket60 = b.Bucket60.Add(amount)
	case days <= 90:
		b.Bucket90 = b.Bucket90.Add(amount)
	default:
		b.Bucket120 = b.Bucket120.Add(amount)
	}
}

// ARAgingDetail is the aging of one customer.
type ARAgingDetail struct {
	CustomerID   int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	ARAgingBucket
	Total decimal.Decimal `json:"total"`
}

// ARAgingReport is the aging summary with a per-customer breakdown.
type ARAgingReport struct {
	AsOf    time.Time       `json:"as_of"`
	Summary ARAgingBucket   `json:"summary"`
	Total   decimal.Decimal `json:"total"`
	Details []ARAgingDetail `json:"details"`
}

// OpenInvoice is an unpaid balance used for aging and overdue sweeps.
type OpenInvoice struct {
	ID           int64
	CustomerID   int64
	CustomerName string
	Status       InvoiceStatus
	DueDate      time.Time
	Remaining    decimal.Decimal
}

// CreateCustomerInput registers the accounting side of a customer.
type CreateCustomerInput struct {
	UserID              int64           `json:"user_id" validate:"required,gt=0"`
	Name                string          `json:"name" validate:"required,max=200"`
	ReceivableAccountID int64           `json:"receivable_account_id" validate:"required,gt=0"`
	RevenueAccountID    *int64          `json:"revenue_account_id,omitempty"`
	CreditLimit         decimal.Decimal `json:"credit_limit"`
}

type CreateInvoiceInput struct {
	CustomerID    int64
	OrderID       *int64
	InvoiceNumber string
	Reference     string
	InvoiceDate   time.Time
	DueDate       time.Time
	Notes         string
	CreatedBy     int64
	Lines         []InvoiceLineInput
}

// InvoiceLineInput describes a billed item. A TaxRateID takes precedence
// over TaxRate; a zero quantity means one.
type InvoiceLineInput struct {
	Description string          `json:"description" validate:"required,max=255"`
	AccountID   int64           `json:"account_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRateID   *int64          `json:"tax_rate_id,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

type RecordPaymentInput struct {
	InvoiceID   int64
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Reference   string
	Notes       string
	ActorID     int64
}

type ListInvoicesRequest struct {
	Status     InvoiceStatus
	CustomerID int64
	Limit      int
	Offset     int
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
