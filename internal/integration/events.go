package integration

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Event names carried on the outbox.
const (
	EventOrderCompleted         = "order.completed"
	EventPurchaseOrderReceived  = "purchase_order.received"
	EventBillApproved           = "bill.approved"
	EventInvoiceApproved        = "invoice.approved"
	EventBillPaymentRecorded    = "bill_payment.recorded"
	EventInvoicePaymentRecorded = "invoice_payment.recorded"
)

// Event is a domain fact that the ledger turns into a journal entry.
type Event interface {
	EventName() string
	// SourceKey identifies the originating document; it is stable across
	// redeliveries so the resulting entry is created once.
	SourceKey() string
}

// DocumentLine is a posting line contributed by a subledger document.
type DocumentLine struct {
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// TaxLine is tax booked to the tax rate's account.
type TaxLine struct {
	AccountID int64           `json:"account_id"`
	TaxName   string          `json:"tax_name"`
	Amount    decimal.Decimal `json:"amount"`
}

// OrderCompleted is raised when a sales order is completed.
type OrderCompleted struct {
	OrderID      int64            `json:"order_id"`
	OrderNumber  string           `json:"order_number"`
	CustomerName string           `json:"customer_name"`
	Total        decimal.Decimal  `json:"total"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	CompletedAt  time.Time        `json:"completed_at"`
	ActorID      int64            `json:"actor_id"`
}

func (OrderCompleted) EventName() string   { return EventOrderCompleted }
func (e OrderCompleted) SourceKey() string { return "ORDER:" + strconv.FormatInt(e.OrderID, 10) }

// PurchaseOrderReceived is raised when goods on a purchase order arrive.
type PurchaseOrderReceived struct {
	PurchaseOrderID int64           `json:"purchase_order_id"`
	PONumber        string          `json:"po_number"`
	VendorName      string          `json:"vendor_name"`
	Total           decimal.Decimal `json:"total"`
	ReceivedAt      time.Time       `json:"received_at"`
	ActorID         int64           `json:"actor_id"`
}

func (PurchaseOrderReceived) EventName() string { return EventPurchaseOrderReceived }
func (e PurchaseOrderReceived) SourceKey() string {
	return "PO:" + strconv.FormatInt(e.PurchaseOrderID, 10)
}

// BillApproved is raised when an AP bill reaches approved.
type BillApproved struct {
	BillID           int64           `json:"bill_id"`
	BillNumber       string          `json:"bill_number"`
	VendorName       string          `json:"vendor_name"`
	PurchaseOrderID  *int64          `json:"purchase_order_id,omitempty"`
	PayableAccountID int64           `json:"payable_account_id"`
	BillDate         time.Time       `json:"bill_date"`
	Lines            []DocumentLine  `json:"lines"`
	TaxLines         []TaxLine       `json:"tax_lines,omitempty"`
	Total            decimal.Decimal `json:"total"`
	ActorID          int64           `json:"actor_id"`
}

func (BillApproved) EventName() string   { return EventBillApproved }
func (e BillApproved) SourceKey() string { return "BILL:" + strconv.FormatInt(e.BillID, 10) }

// InvoiceApproved is raised when an AR invoice reaches approved.
type InvoiceApproved struct {
	InvoiceID           int64           `json:"invoice_id"`
	InvoiceNumber       string          `json:"invoice_number"`
	CustomerName        string          `json:"customer_name"`
	OrderID             *int64          `json:"order_id,omitempty"`
	ReceivableAccountID int64           `json:"receivable_account_id"`
	InvoiceDate         time.Time       `json:"invoice_date"`
	Lines               []DocumentLine  `json:"lines"`
	TaxLines            []TaxLine       `json:"tax_lines,omitempty"`
	Total               decimal.Decimal `json:"total"`
	ActorID             int64           `json:"actor_id"`
}

func (InvoiceApproved) EventName() string   { return EventInvoiceApproved }
func (e InvoiceApproved) SourceKey() string { return "INVOICE:" + strconv.FormatInt(e.InvoiceID, 10) }

// BillPaymentRecorded is raised after a payment against a bill is stored.
type BillPaymentRecorded struct {
	PaymentID        int64           `json:"payment_id"`
	BillID           int64           `json:"bill_id"`
	BillNumber       string          `json:"bill_number"`
	PayableAccountID int64           `json:"payable_account_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentDate      time.Time       `json:"payment_date"`
	Method           string          `json:"method"`
	ActorID          int64           `json:"actor_id"`
}

func (BillPaymentRecorded) EventName() string { return EventBillPaymentRecorded }
func (e BillPaymentRecorded) SourceKey() string {
	return "BILLPAY:" + strconv.FormatInt(e.PaymentID, 10)
}

// InvoicePaymentRecorded is raised after a customer payment is stored.
type InvoicePaymentRecorded struct {
	PaymentID           int64           `json:"payment_id"`
	InvoiceID           int64           `json:"invoice_id"`
	InvoiceNumber       string          `json:"invoice_number"`
	ReceivableAccountID int64           `json:"receivable_account_id"`
	Amount              decimal.Decimal `json:"amount"`
	PaymentDate         time.Time       `json:"payment_date"`
	Method              string          `json:"method"`
	ActorID             int64           `json:"actor_id"`
}

func (InvoicePaymentRecorded) EventName() string { return EventInvoicePaymentRecorded }
func (e InvoicePaymentRecorded) SourceKey() string {
	return "INVPAY:" + strconv.FormatInt(e.PaymentID, 10)
}

// Envelope is the serialised form of an event.
type Envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps evt into JSON suitable for a task queue.
func Encode(evt Event) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Name: evt.EventName(), Payload: payload})
}

// Decode restores the typed event from an envelope.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	var evt Event
	switch env.Name {
	case EventOrderCompleted:
		evt = &OrderCompleted{}
	case EventPurchaseOrderReceived:
		evt = &PurchaseOrderReceived{}
	case EventBillApproved:
		evt = &BillApproved{}
	case EventInvoiceApproved:
		evt = &InvoiceApproved{}
	case EventBillPaymentRecorded:
		evt = &BillPaymentRecorded{}
	case EventInvoicePaymentRecorded:
		evt = &InvoicePaymentRecorded{}
	default:
		return nil, fmt.Errorf("integration: unknown event %q", env.Name)
	}
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, err
	}
	return deref(evt), nil
}

func deref(evt Event) Event {
	switch e := evt.(type) {
	case *OrderCompleted:
		return *e
	case *PurchaseOrderReceived:
		return *e
	case *BillApproved:
		return *e
	case *InvoiceApproved:
		return *e
	case *BillPaymentRecorded:
		return *e
	case *InvoicePaymentRecorded:
		return *e
	}
	return evt
}
