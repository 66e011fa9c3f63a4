package integration

import (
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
)

// plan maps an event onto journal lines. Lines naming a role are resolved
// through the mapping registry; lines with an account id post as given.
func plan(evt Event) (posting, error) {
	switch e := evt.(type) {
	case OrderCompleted:
		return planOrder(e), nil
	case PurchaseOrderReceived:
		return planPurchaseOrder(e), nil
	case BillApproved:
		return planBill(e), nil
	case InvoiceApproved:
		return planInvoice(e), nil
	case BillPaymentRecorded:
		return planBillPayment(e), nil
	case InvoicePaymentRecorded:
		return planInvoicePayment(e), nil
	}
	return posting{}, fmt.Errorf("integration: unsupported event %T", evt)
}

func planOrder(e OrderCompleted) posting {
	id := e.OrderID
	p := posting{
		journal:     SalesJournal,
		module:      "SHOP.ORDER",
		reference:   "SO-" + e.OrderNumber,
		description: "Sale to " + orDefault(e.CustomerName, "Customer"),
		date:        e.CompletedAt,
		orderID:     &id,
		actorID:     e.ActorID,
		lines: []lineSpec{
			{role: mappings.RoleReceivable, description: "Accounts Receivable", debit: e.Total},
			{role: mappings.RoleSalesRevenue, description: "Sales Revenue", credit: e.Total},
		},
	}
	if e.Cost != nil {
		p.lines = append(p.lines,
			lineSpec{role: mappings.RoleCOGS, description: "Cost of Goods Sold", debit: *e.Cost},
			lineSpec{role: mappings.RoleInventory, description: "Inventory Asset", credit: *e.Cost},
		)
	}
	return p
}

func planPurchaseOrder(e PurchaseOrderReceived) posting {
	id := e.PurchaseOrderID
	return posting{
		journal:         PurchasesJournal,
		module:          "PROCUREMENT.PURCHASE_ORDER",
		reference:       "PO-" + e.PONumber,
		description:     "Purchase from " + orDefault(e.VendorName, "Vendor"),
		date:            e.ReceivedAt,
		purchaseOrderID: &id,
		actorID:         e.ActorID,
		lines: []lineSpec{
			{role: mappings.RoleInventory, description: "Inventory Asset", debit: e.Total},
			{role: mappings.RolePayable, description: "Accounts Payable", credit: e.Total},
		},
	}
}

func planBill(e BillApproved) posting {
	p := posting{
		journal:         PurchasesJournal,
		module:          "AP.BILL",
		reference:       "BILL-" + e.BillNumber,
		description:     "Bill from " + orDefault(e.VendorName, "Vendor"),
		date:            e.BillDate,
		purchaseOrderID: e.PurchaseOrderID,
		actorID:         e.ActorID,
	}
	for _, l := range e.Lines {
		p.lines = append(p.lines, lineSpec{accountID: l.AccountID, description: l.Description, debit: l.Amount})
	}
	for _, t := range e.TaxLines {
		p.lines = append(p.lines, lineSpec{accountID: t.AccountID, description: "Purchase tax " + t.TaxName, debit: t.Amount})
	}
	p.lines = append(p.lines, lineSpec{role: mappings.RolePayable, accountID: e.PayableAccountID, description: "Accounts Payable", credit: e.Total})
	return p
}

func planInvoice(e InvoiceApproved) posting {
	p := posting{
		journal:     SalesJournal,
		module:      "AR.INVOICE",
		reference:   "INV-" + e.InvoiceNumber,
		description: "Invoice to " + orDefault(e.CustomerName, "Customer"),
		date:        e.InvoiceDate,
		orderID:     e.OrderID,
		actorID:     e.ActorID,
		lines: []lineSpec{
			{role: mappings.RoleReceivable, accountID: e.ReceivableAccountID, description: "Accounts Receivable", debit: e.Total},
		},
	}
	for _, l := range e.Lines {
		p.lines = append(p.lines, lineSpec{accountID: l.AccountID, description: l.Description, credit: l.Amount})
	}
	for _, t := range e.TaxLines {
		p.lines = append(p.lines, lineSpec{accountID: t.AccountID, description: "Sales tax " + t.TaxName, credit: t.Amount})
	}
	return p
}

func planBillPayment(e BillPaymentRecorded) posting {
	return posting{
		journal:     PurchasesJournal,
		module:      "AP.PAYMENT",
		reference:   "BILLPAY-" + strconv.FormatInt(e.PaymentID, 10),
		description: "Payment of bill " + e.BillNumber,
		date:        e.PaymentDate,
		actorID:     e.ActorID,
		lines: []lineSpec{
			{role: mappings.RolePayable, accountID: e.PayableAccountID, description: "Accounts Payable", debit: e.Amount},
			{role: mappings.RoleCash, description: paymentMemo(e.Method), credit: e.Amount},
		},
	}
}

func planInvoicePayment(e InvoicePaymentRecorded) posting {
	return posting{
		journal:     SalesJournal,
		module:      "AR.PAYMENT",
		reference:   "INVPAY-" + strconv.FormatInt(e.PaymentID, 10),
		description: "Payment of invoice " + e.InvoiceNumber,
		date:        e.PaymentDate,
		actorID:     e.ActorID,
		lines: []lineSpec{
			{role: mappings.RoleCash, description: paymentMemo(e.Method), debit: e.Amount},
			{role: mappings.RoleReceivable, accountID: e.ReceivableAccountID, description: "Accounts Receivable", credit: e.Amount},
		},
	}
}

func paymentMemo(method string) string {
	if method == "" {
		return "Cash"
	}
	return "Cash (" + method + ")"
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
