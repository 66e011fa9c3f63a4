package ar

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const approvalModule = "AR.INVOICE"

const defaultPaymentTerms = 30

type TaxLookup interface {
	Get(ctx context.Context, id int64) (taxes.TaxRate, error)
	Active(ctx context.Context, id int64) (taxes.TaxRate, error)
}

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

type Service struct {
	repo       RepositoryPort
	taxes      TaxLookup
	dispatcher integration.Dispatcher
	audit      AuditPort
	approvals  ApprovalPort
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryPort, taxes TaxLookup) *Service {
	return &Service{repo: repo, taxes: taxes, logger: slog.Default(), now: time.Now}
}

// SetDispatcher injects the ledger event dispatcher.
func (s *Service) SetDispatcher(d integration.Dispatcher) {
	s.dispatcher = d
}

func (s *Service) SetAudit(audit AuditPort, approvals ApprovalPort) {
	s.audit = audit
	s.approvals = approvals
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) CreateCustomer(ctx context.Context, input CreateCustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	switch {
	case input.Name == "" || input.UserID <= 0 || input.ReceivableAccountID <= 0:
		return Customer{}, fmt.Errorf("%w: name, user and receivable account are required", ErrInvalidCustomer)
	case input.CreditLimit.IsNegative():
		return Customer{}, fmt.Errorf("%w: credit limit cannot be negative", ErrInvalidCustomer)
	}
	var customer Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		customer, err = tx.InsertCustomer(ctx, input)
		return err
	})
	return customer, err
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

// CreateInvoice stores a draft invoice with totals derived from its lines.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if len(input.Lines) == 0 {
		return Invoice{}, fmt.Errorf("%w: at least one line is required", ErrInvalidInvoice)
	}
	if input.InvoiceDate.IsZero() {
		input.InvoiceDate = s.now()
	}
	input.InvoiceDate = dateOnly(input.InvoiceDate)
	if input.DueDate.IsZero() {
		input.DueDate = input.InvoiceDate.AddDate(0, 0, defaultPaymentTerms)
	}
	input.DueDate = dateOnly(input.DueDate)
	if input.DueDate.Before(input.InvoiceDate) {
		return Invoice{}, fmt.Errorf("%w: due date precedes invoice date", ErrInvalidInvoice)
	}

	customer, err := s.repo.GetCustomer(ctx, input.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	lines, err := s.prepareLines(ctx, customer, input.Lines)
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		CustomerID:    customer.ID,
		OrderID:       input.OrderID,
		InvoiceNumber: strings.TrimSpace(input.InvoiceNumber),
		Reference:     strings.TrimSpace(input.Reference),
		InvoiceDate:   input.InvoiceDate,
		DueDate:       input.DueDate,
		Status:        InvoiceStatusDraft,
		Notes:         input.Notes,
		CreatedBy:     actorPtr(input.CreatedBy),
	}
	for _, l := range lines {
		inv.Amount = inv.Amount.Add(l.Amount())
		inv.TaxAmount = inv.TaxAmount.Add(l.TaxAmount())
	}

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if inv.InvoiceNumber == "" {
			num, err := tx.NextInvoiceNumber(ctx, inv.InvoiceDate.Year())
			if err != nil {
				return err
			}
			inv.InvoiceNumber = num
		}
		created, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return err
		}
		invoiceID = created.ID
		for _, l := range lines {
			if _, err := tx.InsertInvoiceLine(ctx, created.ID, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, input.CreatedBy, "invoice.create", invoiceID, map[string]any{"number": inv.InvoiceNumber, "total": inv.TotalAmount().String()})
	return s.repo.GetInvoice(ctx, invoiceID)
}

func (s *Service) prepareLines(ctx context.Context, customer Customer, inputs []InvoiceLineInput) ([]InvoiceLine, error) {
	lines := make([]InvoiceLine, 0, len(inputs))
	for i, in := range inputs {
		line := InvoiceLine{
			Description: strings.TrimSpace(in.Description),
			AccountID:   in.AccountID,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRateID:   in.TaxRateID,
			TaxRate:     in.TaxRate,
		}
		if line.Quantity.IsZero() {
			line.Quantity = decimal.NewFromInt(1)
		}
		if line.AccountID == 0 && customer.RevenueAccountID != nil {
			line.AccountID = *customer.RevenueAccountID
		}
		switch {
		case line.AccountID <= 0:
			return nil, fmt.Errorf("%w: line %d has no revenue account", ErrInvalidInvoice, i+1)
		case !line.Quantity.IsPositive():
			return nil, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidInvoice, i+1)
		case line.UnitPrice.IsNegative():
			return nil, fmt.Errorf("%w: line %d unit price cannot be negative", ErrInvalidInvoice, i+1)
		case line.TaxRate.IsNegative() || line.TaxRate.GreaterThan(decimal.NewFromInt(100)):
			return nil, fmt.Errorf("%w: line %d tax rate out of range", ErrInvalidInvoice, i+1)
		}
		if line.TaxRateID != nil {
			if s.taxes == nil {
				return nil, fmt.Errorf("%w: tax rates unavailable", ErrInvalidInvoice)
			}
			rate, err := s.taxes.Active(ctx, *line.TaxRateID)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			line.TaxRate = rate.Rate
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, req)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]InvoicePayment, error) {
	if _, err := s.repo.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// SendInvoice marks a draft as delivered to the customer.
func (s *Service) SendInvoice(ctx context.Context, id, actorID int64) (Invoice, error) {
	return s.transition(ctx, id, actorID, InvoiceStatusSent, shared.ApprovalSend, "")
}

func (s *Service) CancelInvoice(ctx context.Context, id, actorID int64, reason string) (Invoice, error) {
	return s.transition(ctx, id, actorID, InvoiceStatusCancelled, shared.ApprovalCancel, reason)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, to InvoiceStatus, action shared.ApprovalAction, note string) (Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(inv.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, inv.Status, to)
		}
		return tx.UpdateInvoiceStatus(ctx, id, to)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.approve(ctx, id, actorID, action, note)
	return s.repo.GetInvoice(ctx, id)
}

// ApproveInvoice checks the customer's credit limit, moves the invoice to
// approved, charges the customer balance and emits InvoiceApproved.
func (s *Service) ApproveInvoice(ctx context.Context, id, actorID int64) (Invoice, error) {
	var evt integration.InvoiceApproved
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(inv.Status, InvoiceStatusApproved) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, inv.Status, InvoiceStatusApproved)
		}
		customer, err := tx.GetCustomerForUpdate(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		total := inv.TotalAmount()
		if available, limited := customer.AvailableCredit(); limited && total.GreaterThan(available) {
			return fmt.Errorf("%w: %s available, invoice is %s", ErrCreditLimitExceeded, available.StringFixed(2), total.StringFixed(2))
		}
		evt, err = s.approvedEvent(ctx, inv, customer, actorID)
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoiceStatus(ctx, id, InvoiceStatusApproved); err != nil {
			return err
		}
		return tx.AdjustCustomer(ctx, customer.ID, total, total)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.approve(ctx, id, actorID, shared.ApprovalApprove, "")

	dispatchErr := s.dispatch(ctx, evt)
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if dispatchErr != nil {
		return inv, integration.WrapLedgerPostError("invoice approval", dispatchErr)
	}
	return inv, nil
}

func (s *Service) approvedEvent(ctx context.Context, inv Invoice, customer Customer, actorID int64) (integration.InvoiceApproved, error) {
	evt := integration.InvoiceApproved{
		InvoiceID:           inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		CustomerName:        customer.Name,
		OrderID:             inv.OrderID,
		ReceivableAccountID: customer.ReceivableAccountID,
		InvoiceDate:         inv.InvoiceDate,
		Total:               inv.TotalAmount(),
		ActorID:             actorID,
	}
	taxIndex := map[int64]int{}
	for _, l := range inv.Lines {
		amount := l.Amount()
		tax := l.TaxAmount()
		if l.TaxRateID == nil || tax.IsZero() || s.taxes == nil {
			amount = amount.Add(tax)
		} else {
			rate, err := s.taxes.Get(ctx, *l.TaxRateID)
			if err != nil {
				return evt, err
			}
			if idx, ok := taxIndex[rate.ID]; ok {
				evt.TaxLines[idx].Amount = evt.TaxLines[idx].Amount.Add(tax)
			} else {
				taxIndex[rate.ID] = len(evt.TaxLines)
				evt.TaxLines = append(evt.TaxLines, integration.TaxLine{
					AccountID: rate.SalesTaxAccountID,
					TaxName:   rate.String(),
					Amount:    tax,
				})
			}
		}
		evt.Lines = append(evt.Lines, integration.DocumentLine{
			AccountID:   l.AccountID,
			Description: l.Description,
			Amount:      amount,
		})
	}
	return evt, nil
}

// RecordInvoicePayment applies a customer payment. An overdue invoice stays
// overdue until it is settled in full.
func (s *Service) RecordInvoicePayment(ctx context.Context, input RecordPaymentInput) (InvoicePayment, error) {
	if !input.Amount.IsPositive() {
		return InvoicePayment{}, fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if input.Method == "" {
		input.Method = MethodBankTransfer
	}
	if !input.Method.Valid() {
		return InvoicePayment{}, fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, input.Method)
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = s.now()
	}
	amount := input.Amount.Round(2)

	var (
		payment InvoicePayment
		evt     integration.InvoicePaymentRecorded
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if !inv.Status.Collectible() {
			return fmt.Errorf("%w: invoice %s is %s", ErrInvalidStatus, inv.InvoiceNumber, inv.Status)
		}
		if amount.GreaterThan(inv.RemainingAmount()) {
			return fmt.Errorf("%w: %s remaining on %s", ErrOverpayment, inv.RemainingAmount().StringFixed(2), inv.InvoiceNumber)
		}
		paid := inv.PaidAmount.Add(amount)
		status := InvoiceStatusPartiallyPaid
		switch {
		case paid.GreaterThanOrEqual(inv.TotalAmount()):
			status = InvoiceStatusPaid
		case inv.Status == InvoiceStatusOverdue:
			status = InvoiceStatusOverdue
		}
		if err := tx.UpdateInvoicePaid(ctx, inv.ID, paid, status); err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, InvoicePayment{
			InvoiceID:   inv.ID,
			PaymentDate: dateOnly(input.PaymentDate),
			Amount:      amount,
			Method:      input.Method,
			Reference:   strings.TrimSpace(input.Reference),
			Notes:       input.Notes,
			CreatedBy:   actorPtr(input.ActorID),
		})
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomerForUpdate(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		if err := tx.AdjustCustomer(ctx, customer.ID, amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		evt = integration.InvoicePaymentRecorded{
			PaymentID:           payment.ID,
			InvoiceID:           inv.ID,
			InvoiceNumber:       inv.InvoiceNumber,
			ReceivableAccountID: customer.ReceivableAccountID,
			Amount:              amount,
			PaymentDate:         payment.PaymentDate,
			Method:              string(payment.Method),
			ActorID:             input.ActorID,
		}
		return nil
	})
	if err != nil {
		return InvoicePayment{}, err
	}
	s.record(ctx, input.ActorID, "invoice.payment", input.InvoiceID, map[string]any{"payment_id": payment.ID, "amount": amount.String()})

	if err := s.dispatch(ctx, evt); err != nil {
		return payment, integration.WrapLedgerPostError("payment", err)
	}
	return payment, nil
}

// MarkOverdue flags every collectible invoice past due on asOf and returns
// the ids it changed.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) ([]int64, error) {
	open, err := s.repo.OpenInvoices(ctx)
	if err != nil {
		return nil, err
	}
	asOf = dateOnly(asOf)
	var marked []int64
	for _, o := range open {
		if o.Status == InvoiceStatusOverdue || !dateOnly(o.DueDate).Before(asOf) {
			continue
		}
		changed := false
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			inv, err := tx.GetInvoiceForUpdate(ctx, o.ID)
			if err != nil {
				return err
			}
			if !inv.IsOverdue(asOf) || !CanTransition(inv.Status, InvoiceStatusOverdue) {
				return nil
			}
			changed = true
			return tx.UpdateInvoiceStatus(ctx, inv.ID, InvoiceStatusOverdue)
		})
		if err != nil {
			return marked, err
		}
		if changed {
			marked = append(marked, o.ID)
		}
	}
	if len(marked) > 0 {
		s.logger.Info("invoices marked overdue", slog.Int("count", len(marked)), slog.String("as_of", asOf.Format(time.DateOnly)))
	}
	return marked, nil
}

// CalculateARAging buckets open receivables by days past due on asOf.
func (s *Service) CalculateARAging(ctx context.Context, asOf time.Time) (ARAgingReport, error) {
	open, err := s.repo.OpenInvoices(ctx)
	if err != nil {
		return ARAgingReport{}, err
	}
	asOf = dateOnly(asOf)
	report := ARAgingReport{AsOf: asOf}
	byCustomer := map[int64]*ARAgingDetail{}
	for _, o := range open {
		if !o.Remaining.IsPositive() {
			continue
		}
		days := int(asOf.Sub(dateOnly(o.DueDate)).Hours() / 24)
		report.Summary.add(days, o.Remaining)
		d, ok := byCustomer[o.CustomerID]
		if !ok {
			d = &ARAgingDetail{CustomerID: o.CustomerID, CustomerName: o.CustomerName}
			byCustomer[o.CustomerID] = d
		}
		d.add(days, o.Remaining)
	}
	for _, d := range byCustomer {
		d.Total = d.ARAgingBucket.Total()
		report.Details = append(report.Details, *d)
	}
	slices.SortFunc(report.Details, func(a, b ARAgingDetail) int {
		return strings.Compare(a.CustomerName, b.CustomerName)
	})
	report.Total = report.Summary.Total()
	return report, nil
}

// LinkJournalEntry stores the posted entry id on the invoice or payment
// that produced it.
func (s *Service) LinkJournalEntry(ctx context.Context, evt integration.Event, entry journals.JournalEntry) error {
	switch e := evt.(type) {
	case integration.InvoiceApproved:
		return s.repo.SetInvoiceJournalEntry(ctx, e.InvoiceID, entry.ID)
	case integration.InvoicePaymentRecorded:
		return s.repo.SetPaymentJournalEntry(ctx, e.PaymentID, entry.ID)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, evt integration.Event) error {
	if s.dispatcher == nil {
		return nil
	}
	err := s.dispatcher.Dispatch(ctx, evt)
	if err != nil {
		s.logger.Warn("ledger dispatch failed", slog.String("event", evt.EventName()),
			slog.String("source", evt.SourceKey()), slog.Any("error", err))
	}
	return err
}

func (s *Service) approve(ctx context.Context, id, actorID int64, action shared.ApprovalAction, note string) {
	s.record(ctx, actorID, "invoice."+strings.ToLower(string(action)), id, nil)
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   shared.DocumentRef("INVOICE", id),
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("approval history not recorded", slog.Int64("invoice_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func actorPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
