package ap

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

// approvalModule keys bill workflow history.
const approvalModule = "AP.BILL"

const defaultPaymentTerms = 30

// TaxLookup resolves tax rates referenced by bill lines.
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
	repo       Repository
	taxes      TaxLookup
	dispatcher integration.Dispatcher
	audit      AuditPort
	approvals  ApprovalPort
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo Repository, taxes TaxLookup) *Service {
	return &Service{repo: repo, taxes: taxes, logger: slog.Default(), now: time.Now}
}

// SetDispatcher injects the ledger event dispatcher.
func (s *Service) SetDispatcher(d integration.Dispatcher) {
	s.dispatcher = d
}

// SetAudit attaches the audit and approval history sinks.
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

// CreateVendor registers the accounting side of a procurement vendor.
func (s *Service) CreateVendor(ctx context.Context, input CreateVendorInput) (Vendor, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" || input.ProcurementVendorID <= 0 || input.PayableAccountID <= 0 {
		return Vendor{}, fmt.Errorf("%w: name, procurement vendor and payable account are required", ErrInvalidVendor)
	}
	var vendor Vendor
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		vendor, err = tx.InsertVendor(ctx, input)
		return err
	})
	return vendor, err
}

func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) ListVendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

// CreateBill stores a draft bill. Amount and TaxAmount are derived from the
// lines; a line tax rate id wins over a literal rate.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	if len(input.Lines) == 0 {
		return Bill{}, fmt.Errorf("%w: at least one line is required", ErrInvalidBill)
	}
	if input.BillDate.IsZero() {
		input.BillDate = s.now()
	}
	input.BillDate = dateOnly(input.BillDate)
	if input.DueDate.IsZero() {
		input.DueDate = input.BillDate.AddDate(0, 0, defaultPaymentTerms)
	}
	input.DueDate = dateOnly(input.DueDate)
	if input.DueDate.Before(input.BillDate) {
		return Bill{}, fmt.Errorf("%w: due date precedes bill date", ErrInvalidBill)
	}

	vendor, err := s.repo.GetVendor(ctx, input.VendorID)
	if err != nil {
		return Bill{}, err
	}
	lines, err := s.prepareLines(ctx, vendor, input.Lines)
	if err != nil {
		return Bill{}, err
	}

	bill := Bill{
		VendorID:        vendor.ID,
		PurchaseOrderID: input.PurchaseOrderID,
		BillNumber:      strings.TrimSpace(input.BillNumber),
		Reference:       strings.TrimSpace(input.Reference),
		BillDate:        input.BillDate,
		DueDate:         input.DueDate,
		Status:          BillStatusDraft,
		Notes:           input.Notes,
		CreatedBy:       actorPtr(input.CreatedBy),
	}
	for _, l := range lines {
		bill.Amount = bill.Amount.Add(l.Amount)
		bill.TaxAmount = bill.TaxAmount.Add(l.TaxAmount())
	}

	var billID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if bill.BillNumber == "" {
			num, err := tx.NextBillNumber(ctx, vendor.ID, bill.BillDate.Year())
			if err != nil {
				return err
			}
			bill.BillNumber = num
		}
		created, err := tx.InsertBill(ctx, bill)
		if err != nil {
			return err
		}
		billID = created.ID
		for _, l := range lines {
			if _, err := tx.InsertBillLine(ctx, created.ID, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.record(ctx, input.CreatedBy, "bill.create", billID, map[string]any{"number": bill.BillNumber, "total": bill.TotalAmount().String()})
	return s.repo.GetBill(ctx, billID)
}

func (s *Service) prepareLines(ctx context.Context, vendor Vendor, inputs []BillLineInput) ([]BillLine, error) {
	lines := make([]BillLine, 0, len(inputs))
	for i, in := range inputs {
		line := BillLine{
			Description: strings.TrimSpace(in.Description),
			AccountID:   in.AccountID,
			Amount:      in.Amount.Round(2),
			TaxRateID:   in.TaxRateID,
			TaxRate:     in.TaxRate,
		}
		if line.AccountID == 0 && vendor.ExpenseAccountID != nil {
			line.AccountID = *vendor.ExpenseAccountID
		}
		switch {
		case line.AccountID <= 0:
			return nil, fmt.Errorf("%w: line %d has no account", ErrInvalidBill, i+1)
		case !line.Amount.IsPositive():
			return nil, fmt.Errorf("%w: line %d amount must be positive", ErrInvalidBill, i+1)
		case line.TaxRate.IsNegative() || line.TaxRate.GreaterThan(decimal.NewFromInt(100)):
			return nil, fmt.Errorf("%w: line %d tax rate out of range", ErrInvalidBill, i+1)
		}
		if line.TaxRateID != nil {
			if s.taxes == nil {
				return nil, fmt.Errorf("%w: tax rates unavailable", ErrInvalidBill)
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

func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.repo.GetBill(ctx, id)
}

func (s *Service) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	return s.repo.ListBills(ctx, req)
}

func (s *Service) ListPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	if _, err := s.repo.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, billID)
}

func (s *Service) VerifyBill(ctx context.Context, id, actorID int64) (Bill, error) {
	return s.transition(ctx, id, actorID, BillStatusVerified, shared.ApprovalVerify, "")
}

func (s *Service) DisputeBill(ctx context.Context, id, actorID int64, reason string) (Bill, error) {
	return s.transition(ctx, id, actorID, BillStatusDisputed, shared.ApprovalDispute, reason)
}

func (s *Service) CancelBill(ctx context.Context, id, actorID int64, reason string) (Bill, error) {
	return s.transition(ctx, id, actorID, BillStatusCancelled, shared.ApprovalCancel, reason)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, to BillStatus, action shared.ApprovalAction, note string) (Bill, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(bill.Status, to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, bill.Status, to)
		}
		return tx.UpdateBillStatus(ctx, id, to)
	})
	if err != nil {
		return Bill{}, err
	}
	s.approve(ctx, id, actorID, action, note)
	return s.repo.GetBill(ctx, id)
}

// ApproveBill moves a verified bill to approved, charges the vendor balance
// and emits BillApproved. The approval is kept when the ledger rejects the
// event; the failure is reported as a LedgerPostError.
func (s *Service) ApproveBill(ctx context.Context, id, actorID int64) (Bill, error) {
	var evt integration.BillApproved
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(bill.Status, BillStatusApproved) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidStatus, bill.Status, BillStatusApproved)
		}
		vendor, err := tx.GetVendorForUpdate(ctx, bill.VendorID)
		if err != nil {
			return err
		}
		evt, err = s.approvedEvent(ctx, bill, vendor, actorID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBillStatus(ctx, id, BillStatusApproved); err != nil {
			return err
		}
		total := bill.TotalAmount()
		return tx.AdjustVendor(ctx, vendor.ID, total, total)
	})
	if err != nil {
		return Bill{}, err
	}
	s.approve(ctx, id, actorID, shared.ApprovalApprove, "")

	dispatchErr := s.dispatch(ctx, evt)
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return Bill{}, err
	}
	if dispatchErr != nil {
		return bill, integration.WrapLedgerPostError("bill approval", dispatchErr)
	}
	return bill, nil
}

func (s *Service) approvedEvent(ctx context.Context, bill Bill, vendor Vendor, actorID int64) (integration.BillApproved, error) {
	evt := integration.BillApproved{
		BillID:           bill.ID,
		BillNumber:       bill.BillNumber,
		VendorName:       vendor.Name,
		PurchaseOrderID:  bill.PurchaseOrderID,
		PayableAccountID: vendor.PayableAccountID,
		BillDate:         bill.BillDate,
		Total:            bill.TotalAmount(),
		ActorID:          actorID,
	}
	taxIndex := map[int64]int{}
	for _, l := range bill.Lines {
		amount := l.Amount
		tax := l.TaxAmount()
		if l.TaxRateID == nil || tax.IsZero() || s.taxes == nil {
			// no tax account to post to; the tax stays on the line's account
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
					AccountID: rate.PurchaseTaxAccountID,
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

// RecordBillPayment applies a payment to an approved or partially paid bill.
func (s *Service) RecordBillPayment(ctx context.Context, input RecordPaymentInput) (BillPayment, error) {
	if !input.Amount.IsPositive() {
		return BillPayment{}, fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	if input.Method == "" {
		input.Method = MethodBankTransfer
	}
	if !input.Method.Valid() {
		return BillPayment{}, fmt.Errorf("%w: unknown method %q", ErrInvalidPayment, input.Method)
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = s.now()
	}
	amount := input.Amount.Round(2)

	var (
		payment BillPayment
		evt     integration.BillPaymentRecorded
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, input.BillID)
		if err != nil {
			return err
		}
		if bill.Status != BillStatusApproved && bill.Status != BillStatusPartial {
			return fmt.Errorf("%w: bill %s is %s", ErrInvalidStatus, bill.BillNumber, bill.Status)
		}
		if amount.GreaterThan(bill.RemainingAmount()) {
			return fmt.Errorf("%w: %s remaining on %s", ErrOverpayment, bill.RemainingAmount().StringFixed(2), bill.BillNumber)
		}
		paid := bill.PaidAmount.Add(amount)
		status := BillStatusPartial
		if paid.GreaterThanOrEqual(bill.TotalAmount()) {
			status = BillStatusPaid
		}
		if err := tx.UpdateBillPaid(ctx, bill.ID, paid, status); err != nil {
			return err
		}
		payment, err = tx.InsertPayment(ctx, BillPayment{
			BillID:      bill.ID,
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
		vendor, err := tx.GetVendorForUpdate(ctx, bill.VendorID)
		if err != nil {
			return err
		}
		if err := tx.AdjustVendor(ctx, vendor.ID, amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		evt = integration.BillPaymentRecorded{
			PaymentID:        payment.ID,
			BillID:           bill.ID,
			BillNumber:       bill.BillNumber,
			PayableAccountID: vendor.PayableAccountID,
			Amount:           amount,
			PaymentDate:      payment.PaymentDate,
			Method:           string(payment.Method),
			ActorID:          input.ActorID,
		}
		return nil
	})
	if err != nil {
		return BillPayment{}, err
	}
	s.record(ctx, input.ActorID, "bill.payment", input.BillID, map[string]any{"payment_id": payment.ID, "amount": amount.String()})

	if err := s.dispatch(ctx, evt); err != nil {
		return payment, integration.WrapLedgerPostError("payment", err)
	}
	return payment, nil
}

// APAgingReport is the aging summary with a per-vendor breakdown.
type APAgingReport struct {
	AsOf    time.Time       `json:"as_of"`
	Summary APAgingBucket   `json:"summary"`
	Total   decimal.Decimal `json:"total"`
	Details []APAgingDetail `json:"details"`
}

// CalculateAPAging buckets open balances by days past due on asOf.
func (s *Service) CalculateAPAging(ctx context.Context, asOf time.Time) (APAgingReport, error) {
	open, err := s.repo.OpenBills(ctx)
	if err != nil {
		return APAgingReport{}, err
	}
	asOf = dateOnly(asOf)
	report := APAgingReport{AsOf: asOf}
	byVendor := map[int64]*APAgingDetail{}
	for _, b := range open {
		if !b.Remaining.IsPositive() {
			continue
		}
		days := int(asOf.Sub(dateOnly(b.DueDate)).Hours() / 24)
		report.Summary.add(days, b.Remaining)
		d, ok := byVendor[b.VendorID]
		if !ok {
			d = &APAgingDetail{VendorID: b.VendorID, VendorName: b.VendorName}
			byVendor[b.VendorID] = d
		}
		d.add(days, b.Remaining)
	}
	for _, d := range byVendor {
		d.Total = d.APAgingBucket.Total()
		report.Details = append(report.Details, *d)
	}
	slices.SortFunc(report.Details, func(a, b APAgingDetail) int {
		return strings.Compare(a.VendorName, b.VendorName)
	})
	report.Total = report.Summary.Total()
	return report, nil
}

// LinkJournalEntry stores the posted entry id on the bill or payment that
// produced it. Registered with the integration hooks.
func (s *Service) LinkJournalEntry(ctx context.Context, evt integration.Event, entry journals.JournalEntry) error {
	switch e := evt.(type) {
	case integration.BillApproved:
		return s.repo.SetBillJournalEntry(ctx, e.BillID, entry.ID)
	case integration.BillPaymentRecorded:
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
	s.record(ctx, actorID, "bill."+strings.ToLower(string(action)), id, nil)
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   shared.DocumentRef("BILL", id),
		ActorID: actorID,
		Action:  action,
		Note:    note,
		At:      s.now(),
	})
	if err != nil {
		s.logger.Warn("approval history not recorded", slog.Int64("bill_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "bill",
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
