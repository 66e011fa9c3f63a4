package ap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
)

// BillStatus enumerates bill lifecycle states.
type BillStatus string

const (
	BillStatusDraft     BillStatus = "draft"
	BillStatusVerified  BillStatus = "verified"
	BillStatusApproved  BillStatus = "approved"
	BillStatusPartial   BillStatus = "partial"
	BillStatusPaid      BillStatus = "paid"
	BillStatusCancelled BillStatus = "cancelled"
	BillStatusDisputed  BillStatus = "disputed"
)

var billTransitions = map[BillStatus][]BillStatus{
	BillStatusDraft:    {BillStatusVerified, BillStatusCancelled, BillStatusDisputed},
	BillStatusVerified: {BillStatusApproved, BillStatusDisputed, BillStatusCancelled},
	BillStatusDisputed: {BillStatusVerified, BillStatusCancelled},
	BillStatusApproved: {BillStatusPartial, BillStatusPaid},
	BillStatusPartial:  {BillStatusPaid},
}

// CanTransition reports whether a bill may move from one status to another.
func CanTransition(from, to BillStatus) bool {
	for _, next := range billTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod enumerates how a bill was settled.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodOther        PaymentMethod = "other"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCheck, MethodCash, MethodCreditCard, MethodOther:
		return true
	}
	return false
}

// Vendor is the accounting extension of a procurement vendor.
type Vendor struct {
	ID                  int64           `json:"id"`
	ProcurementVendorID int64           `json:"procurement_vendor_id"`
	Name                string          `json:"name"`
	PayableAccountID    int64           `json:"payable_account_id"`
	ExpenseAccountID    *int64          `json:"expense_account_id,omitempty"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	YTDPurchases        decimal.Decimal `json:"ytd_purchases"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Bill is a supplier invoice to be paid.
type Bill struct {
	ID              int64           `json:"id"`
	VendorID        int64           `json:"vendor_id"`
	PurchaseOrderID *int64          `json:"purchase_order_id,omitempty"`
	BillNumber      string          `json:"bill_number"`
	Reference       string          `json:"reference,omitempty"`
	BillDate        time.Time       `json:"bill_date"`
	DueDate         time.Time       `json:"due_date"`
	Amount          decimal.Decimal `json:"amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	Status          BillStatus      `json:"status"`
	JournalEntryID  *int64          `json:"journal_entry_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       *int64          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Lines           []BillLine      `json:"lines,omitempty"`
}

// TotalAmount is amount plus tax.
func (b Bill) TotalAmount() decimal.Decimal {
	return b.Amount.Add(b.TaxAmount)
}

// RemainingAmount is what is still owed.
func (b Bill) RemainingAmount() decimal.Decimal {
	return b.TotalAmount().Sub(b.PaidAmount)
}

// IsPaid reports whether payments cover the total.
func (b Bill) IsPaid() bool {
	return b.PaidAmount.GreaterThanOrEqual(b.TotalAmount())
}

// IsOverdue reports whether the bill is past due on asOf.
func (b Bill) IsOverdue(asOf time.Time) bool {
	if b.Status == BillStatusPaid || b.Status == BillStatusCancelled {
		return false
	}
	return b.DueDate.Before(dateOnly(asOf))
}

// BillLine is one expense or asset line of a bill.
type BillLine struct {
	ID          int64           `json:"id"`
	BillID      int64           `json:"bill_id"`
	Description string          `json:"description"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	TaxRateID   *int64          `json:"tax_rate_id,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// TaxAmount is amount*rate/100 rounded half-up to cents.
func (l BillLine) TaxAmount() decimal.Decimal {
	return taxes.Compute(l.Amount, l.TaxRate)
}

// BillPayment records money paid against a bill.
type BillPayment struct {
	ID             int64           `json:"id"`
	BillID         int64           `json:"bill_id"`
	PaymentDate    time.Time       `json:"payment_date"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"payment_method"`
	Reference      string          `json:"reference,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	JournalEntryID *int64          `json:"journal_entry_id,omitempty"`
	CreatedBy      *int64          `json:"created_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// APAgingBucket summarises totals by aging periods.
type APAgingBucket struct {
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
}

// Total sums every bucket.
func (b APAgingBucket) Total() decimal.Decimal {
	return b.Current.Add(b.Bucket30).Add(b.Bucket60).Add(b.Bucket90).Add(b.Bucket120)
}

func (b *APAgingBucket) add(days int, amount decimal.Decimal) {
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

// APAgingDetail provides vendor-level aging breakdown.
type APAgingDetail struct {
	VendorID   int64  `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	APAgingBucket
	Total decimal.Decimal `json:"total"`
}

// OpenBill is an unpaid balance used for aging.
type OpenBill struct {
	ID         int64
	VendorID   int64
	VendorName string
	DueDate    time.Time
	Remaining  decimal.Decimal
}

// --- Input DTOs ---

// CreateVendorInput registers the accounting side of a vendor.
type CreateVendorInput struct {
	ProcurementVendorID int64  `json:"procurement_vendor_id" validate:"required,gt=0"`
	Name                string `json:"name" validate:"required,max=200"`
	PayableAccountID    int64  `json:"payable_account_id" validate:"required,gt=0"`
	ExpenseAccountID    *int64 `json:"expense_account_id,omitempty"`
}

// CreateBillInput for creating bills.
type CreateBillInput struct {
	VendorID        int64
	PurchaseOrderID *int64
	BillNumber      string
	Reference       string
	BillDate        time.Time
	DueDate         time.Time
	Notes           string
	CreatedBy       int64
	Lines           []BillLineInput
}

// BillLineInput for bill lines. A TaxRateID takes precedence over TaxRate.
type BillLineInput struct {
	Description string          `json:"description" validate:"required,max=255"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	TaxRateID   *int64          `json:"tax_rate_id,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// RecordPaymentInput for paying a bill.
type RecordPaymentInput struct {
	BillID      int64
	Amount      decimal.Decimal
	PaymentDate time.Time
	Method      PaymentMethod
	Reference   string
	Notes       string
	ActorID     int64
}

// ListBillsRequest for filtering bills.
type ListBillsRequest struct {
	Status   BillStatus
	VendorID int64
	Limit    int
	Offset   int
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
