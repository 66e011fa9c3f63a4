package ap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	accounting "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
)

type memoryAPRepo struct {
	vendors    map[int64]Vendor
	bills      map[int64]Bill
	payments   map[int64]BillPayment
	nextID     int64
	nextLineID int64
	nextPayID  int64
}

type memoryAPTx struct {
	repo *memoryAPRepo
}

func newMemoryAPRepo() *memoryAPRepo {
	return &memoryAPRepo{
		vendors:  make(map[int64]Vendor),
		bills:    make(map[int64]Bill),
		payments: make(map[int64]BillPayment),
	}
}

func (r *memoryAPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAPTx{repo: r})
}

func (r *memoryAPRepo) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, ErrVendorNotFound
	}
	return v, nil
}

func (r *memoryAPRepo) ListVendors(ctx context.Context) ([]Vendor, error) {
	var out []Vendor
	for _, v := range r.vendors {
		out = append(out, v)
	}
	return out, nil
}

func (r *memoryAPRepo) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (r *memoryAPRepo) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if req.Status != "" && b.Status != req.Status {
			continue
		}
		if req.VendorID != 0 && b.VendorID != req.VendorID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryAPRepo) ListPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	var out []BillPayment
	for _, p := range r.payments {
		if p.BillID == billID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryAPRepo) OpenBills(ctx context.Context) ([]OpenBill, error) {
	var out []OpenBill
	for _, b := range r.bills {
		if b.Status != BillStatusApproved && b.Status != BillStatusPartial {
			continue
		}
		out = append(out, OpenBill{ID: b.ID, VendorID: b.VendorID, VendorName: r.vendors[b.VendorID].Name, DueDate: b.DueDate, Remaining: b.RemainingAmount()})
	}
	return out, nil
}

func (r *memoryAPRepo) SetBillJournalEntry(ctx context.Context, billID, entryID int64) error {
	b, ok := r.bills[billID]
	if !ok {
		return ErrBillNotFound
	}
	b.JournalEntryID = &entryID
	r.bills[billID] = b
	return nil
}

func (r *memoryAPRepo) SetPaymentJournalEntry(ctx context.Context, paymentID, entryID int64) error {
	p := r.payments[paymentID]
	p.JournalEntryID = &entryID
	r.payments[paymentID] = p
	return nil
}

func (t *memoryAPTx) InsertVendor(ctx context.Context, in CreateVendorInput) (Vendor, error) {
	for _, v := range t.repo.vendors {
		if v.ProcurementVendorID == in.ProcurementVendorID {
			return Vendor{}, ErrVendorExists
		}
	}
	t.repo.nextID++
	v := Vendor{ID: t.repo.nextID, ProcurementVendorID: in.ProcurementVendorID, Name: in.Name, PayableAccountID: in.PayableAccountID, ExpenseAccountID: in.ExpenseAccountID}
	t.repo.vendors[v.ID] = v
	return v, nil
}

func (t *memoryAPTx) GetVendorForUpdate(ctx context.Context, id int64) (Vendor, error) {
	return t.repo.GetVendor(ctx, id)
}

func (t *memoryAPTx) AdjustVendor(ctx context.Context, id int64, balanceDelta, ytdDelta decimal.Decimal) error {
	v, ok := t.repo.vendors[id]
	if !ok {
		return ErrVendorNotFound
	}
	v.CurrentBalance = v.CurrentBalance.Add(balanceDelta)
	v.YTDPurchases = v.YTDPurchases.Add(ytdDelta)
	t.repo.vendors[id] = v
	return nil
}

func (t *memoryAPTx) NextBillNumber(ctx context.Context, vendorID int64, year int) (string, error) {
	count := 0
	for _, b := range t.repo.bills {
		if b.VendorID == vendorID {
			count++
		}
	}
	return fmt.Sprintf("BILL-%d-%05d", year, count+1), nil
}

func (t *memoryAPTx) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	for _, existing := range t.repo.bills {
		if existing.VendorID == b.VendorID && existing.BillNumber == b.BillNumber {
			return Bill{}, ErrDuplicateBillNumber
		}
	}
	t.repo.nextID++
	b.ID = t.repo.nextID
	b.PaidAmount = decimal.Zero
	t.repo.bills[b.ID] = b
	return b, nil
}

func (t *memoryAPTx) InsertBillLine(ctx context.Context, billID int64, line BillLine) (BillLine, error) {
	t.repo.nextLineID++
	line.ID = t.repo.nextLineID
	line.BillID = billID
	b := t.repo.bills[billID]
	b.Lines = append(b.Lines, line)
	t.repo.bills[billID] = b
	return line, nil
}

func (t *memoryAPTx) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return t.repo.GetBill(ctx, id)
}

func (t *memoryAPTx) UpdateBillStatus(ctx context.Context, id int64, status BillStatus) error {
	b := t.repo.bills[id]
	b.Status = status
	t.repo.bills[id] = b
	return nil
}

func (t *memoryAPTx) UpdateBillPaid(ctx context.Context, id int64, paid decimal.Decimal, status BillStatus) error {
	b := t.repo.bills[id]
	b.PaidAmount = paid
	b.Status = status
	t.repo.bills[id] = b
	return nil
}

func (t *memoryAPTx) InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error) {
	t.repo.nextPayID++
	p.ID = t.repo.nextPayID
	t.repo.payments[p.ID] = p
	return p, nil
}

type stubTaxes map[int64]taxes.TaxRate

func (s stubTaxes) Get(ctx context.Context, id int64) (taxes.TaxRate, error) {
	t, ok := s[id]
	if !ok {
		return taxes.TaxRate{}, shared.ErrNotFound
	}
	return t, nil
}

func (s stubTaxes) Active(ctx context.Context, id int64) (taxes.TaxRate, error) {
	t, err := s.Get(ctx, id)
	if err == nil && !t.IsActive {
		return taxes.TaxRate{}, shared.ErrValidation
	}
	return t, err
}

// linkingDispatcher stands in for the ledger: it records events and links a
// fake entry back through the service.
type linkingDispatcher struct {
	svc    *Service
	events []integration.Event
	err    error
}

func (d *linkingDispatcher) Dispatch(ctx context.Context, evt integration.Event) error {
	d.events = append(d.events, evt)
	if d.err != nil {
		return d.err
	}
	return d.svc.LinkJournalEntry(ctx, evt, journals.JournalEntry{ID: int64(900 + len(d.events))})
}

type apFixture struct {
	repo     *memoryAPRepo
	svc      *Service
	events   *linkingDispatcher
	vendor   Vendor
	vatID    int64
	disabled int64
}

func newAPFixture(t *testing.T) *apFixture {
	t.Helper()
	repo := newMemoryAPRepo()
	rates := stubTaxes{
		7: {ID: 7, Name: "VAT", Rate: decimal.RequireFromString("8.25"), IsActive: true, SalesTaxAccountID: 2200, PurchaseTaxAccountID: 1400},
		8: {ID: 8, Name: "Old VAT", Rate: decimal.NewFromInt(5), IsActive: false, SalesTaxAccountID: 2200, PurchaseTaxAccountID: 1400},
	}
	svc := NewService(repo, rates).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.WithNow(func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) })
	disp := &linkingDispatcher{svc: svc}
	svc.SetDispatcher(disp)

	expense := int64(5100)
	vendor, err := svc.CreateVendor(context.Background(), CreateVendorInput{
		ProcurementVendorID: 31,
		Name:                "Acme Supplies",
		PayableAccountID:    2100,
		ExpenseAccountID:    &expense,
	})
	require.NoError(t, err)
	return &apFixture{repo: repo, svc: svc, events: disp, vendor: vendor, vatID: 7, disabled: 8}
}

func (f *apFixture) bill(t *testing.T) Bill {
	t.Helper()
	vat := f.vatID
	bill, err := f.svc.CreateBill(context.Background(), CreateBillInput{
		VendorID: f.vendor.ID,
		BillDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines: []BillLineInput{
			{Description: "Paper", AccountID: 5200, Amount: decimal.NewFromInt(1000), TaxRateID: &vat},
			{Description: "Courier", Amount: decimal.NewFromInt(200), TaxRate: decimal.NewFromInt(10)},
		},
		CreatedBy: 4,
	})
	require.NoError(t, err)
	return bill
}

func (f *apFixture) approved(t *testing.T) Bill {
	t.Helper()
	bill := f.bill(t)
	_, err := f.svc.VerifyBill(context.Background(), bill.ID, 4)
	require.NoError(t, err)
	bill, err = f.svc.ApproveBill(context.Background(), bill.ID, 5)
	require.NoError(t, err)
	return bill
}

func TestBillTransitions(t *testing.T) {
	cases := []struct {
		from, to BillStatus
		ok       bool
	}{
		{BillStatusDraft, BillStatusVerified, true},
		{BillStatusDraft, BillStatusApproved, false},
		{BillStatusVerified, BillStatusApproved, true},
		{BillStatusDisputed, BillStatusVerified, true},
		{BillStatusApproved, BillStatusCancelled, false},
		{BillStatusPartial, BillStatusPaid, true},
		{BillStatusPaid, BillStatusPartial, false},
		{BillStatusCancelled, BillStatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestCreateBillDerivesTotals(t *testing.T) {
	f := newAPFixture(t)
	bill := f.bill(t)

	assert.Equal(t, BillStatusDraft, bill.Status)
	assert.Equal(t, "BILL-2024-00001", bill.BillNumber)
	assert.Equal(t, "1200.00", bill.Amount.StringFixed(2))
	assert.Equal(t, "102.50", bill.TaxAmount.StringFixed(2))
	assert.Equal(t, "1302.50", bill.TotalAmount().StringFixed(2))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), bill.DueDate)
	require.Len(t, bill.Lines, 2)
	assert.Equal(t, int64(5100), bill.Lines[1].AccountID, "vendor expense account fills a blank line")
	assert.Equal(t, "8.25", bill.Lines[0].TaxRate.String())
}

func TestCreateBillRejectsBadInput(t *testing.T) {
	f := newAPFixture(t)
	ctx := context.Background()
	disabled := f.disabled

	_, err := f.svc.CreateBill(ctx, CreateBillInput{VendorID: f.vendor.ID})
	require.ErrorIs(t, err, ErrInvalidBill)

	_, err = f.svc.CreateBill(ctx, CreateBillInput{VendorID: f.vendor.ID, Lines: []BillLineInput{{Description: "x", AccountID: 1, Amount: decimal.NewFromInt(-5)}}})
	require.ErrorIs(t, err, ErrInvalidBill)

	_, err = f.svc.CreateBill(ctx, CreateBillInput{VendorID: f.vendor.ID, Lines: []BillLineInput{{Description: "x", AccountID: 1, Amount: decimal.NewFromInt(5), TaxRateID: &disabled}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.CreateBill(ctx, CreateBillInput{VendorID: 404, Lines: []BillLineInput{{Description: "x", AccountID: 1, Amount: decimal.NewFromInt(5)}}})
	require.ErrorIs(t, err, ErrVendorNotFound)

	f.bill(t)
	_, err = f.svc.CreateBill(ctx, CreateBillInput{VendorID: f.vendor.ID, BillNumber: "BILL-2024-00001", Lines: []BillLineInput{{Description: "x", AccountID: 1, Amount: decimal.NewFromInt(5)}}})
	require.ErrorIs(t, err, ErrDuplicateBillNumber)
}

func TestApproveBillEmitsLedgerEvent(t *testing.T) {
	f := newAPFixture(t)
	bill := f.bill(t)
	ctx := context.Background()

	_, err := f.svc.ApproveBill(ctx, bill.ID, 5)
	require.ErrorIs(t, err, ErrInvalidStatus)

	bill = f.approved(t)
	assert.Equal(t, BillStatusApproved, bill.Status)
	require.NotNil(t, bill.JournalEntryID)
	assert.Equal(t, int64(901), *bill.JournalEntryID)

	vendor, err := f.svc.GetVendor(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, "1302.50", vendor.CurrentBalance.StringFixed(2))
	assert.Equal(t, "1302.50", vendor.YTDPurchases.StringFixed(2))

	require.Len(t, f.events.events, 1)
	evt, ok := f.events.events[0].(integration.BillApproved)
	require.True(t, ok)
	assert.Equal(t, int64(2100), evt.PayableAccountID)
	assert.Equal(t, "1302.50", evt.Total.StringFixed(2))
	require.Len(t, evt.Lines, 2)
	assert.Equal(t, "1000.00", evt.Lines[0].Amount.StringFixed(2))
	assert.Equal(t, "220.00", evt.Lines[1].Amount.StringFixed(2), "rate without tax account folds into the line")
	require.Len(t, evt.TaxLines, 1)
	assert.Equal(t, int64(1400), evt.TaxLines[0].AccountID)
	assert.Equal(t, "82.50", evt.TaxLines[0].Amount.StringFixed(2))

	sum := decimal.Zero
	for _, l := range evt.Lines {
		sum = sum.Add(l.Amount)
	}
	for _, l := range evt.TaxLines {
		sum = sum.Add(l.Amount)
	}
	assert.True(t, sum.Equal(evt.Total), "event lines must balance the payable credit")

	_, err = f.svc.CancelBill(ctx, bill.ID, 5, "late")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDisputeAndReverify(t *testing.T) {
	f := newAPFixture(t)
	bill := f.bill(t)
	ctx := context.Background()

	bill, err := f.svc.DisputeBill(ctx, bill.ID, 4, "wrong quantity")
	require.NoError(t, err)
	assert.Equal(t, BillStatusDisputed, bill.Status)

	bill, err = f.svc.VerifyBill(ctx, bill.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, BillStatusVerified, bill.Status)

	bill, err = f.svc.CancelBill(ctx, bill.ID, 4, "")
	require.NoError(t, err)
	assert.Equal(t, BillStatusCancelled, bill.Status)
	assert.Empty(t, f.events.events)
}

func TestRecordBillPayment(t *testing.T) {
	f := newAPFixture(t)
	bill := f.approved(t)
	ctx := context.Background()

	_, err := f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.NewFromInt(2000)})
	require.ErrorIs(t, err, ErrOverpayment)
	_, err = f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidPayment)
	_, err = f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.NewFromInt(1), Method: "barter"})
	require.ErrorIs(t, err, ErrInvalidPayment)

	payment, err := f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.NewFromInt(300), Method: MethodCheck, ActorID: 5})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), payment.PaymentDate)

	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, BillStatusPartial, bill.Status)
	assert.Equal(t, "1002.50", bill.RemainingAmount().StringFixed(2))

	_, err = f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.RequireFromString("1002.50")})
	require.NoError(t, err)
	bill, err = f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, BillStatusPaid, bill.Status)
	assert.True(t, bill.IsPaid())

	vendor, err := f.svc.GetVendor(ctx, f.vendor.ID)
	require.NoError(t, err)
	assert.True(t, vendor.CurrentBalance.IsZero())

	payments, err := f.svc.ListPayments(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	for _, p := range payments {
		require.NotNil(t, p.JournalEntryID)
	}

	require.Len(t, f.events.events, 3)
	paid, ok := f.events.events[1].(integration.BillPaymentRecorded)
	require.True(t, ok)
	assert.Equal(t, int64(2100), paid.PayableAccountID)
	assert.Equal(t, "check", paid.Method)

	_, err = f.svc.RecordBillPayment(ctx, RecordPaymentInput{BillID: bill.ID, Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestLedgerFailureKeepsPayment(t *testing.T) {
	f := newAPFixture(t)
	bill := f.approved(t)
	f.events.err = fmt.Errorf("post: %w", accounting.ErrPeriodClosed)

	payment, err := f.svc.RecordBillPayment(context.Background(), RecordPaymentInput{BillID: bill.ID, Amount: decimal.NewFromInt(100)})
	require.Error(t, err)
	lpe, ok := integration.AsLedgerPending(err)
	require.True(t, ok)
	assert.True(t, lpe.Retryable)
	assert.ErrorIs(t, err, accounting.ErrPeriodClosed)
	assert.NotZero(t, payment.ID)
	assert.Nil(t, f.repo.payments[payment.ID].JournalEntryID)

	bill, err = f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", bill.PaidAmount.StringFixed(2))
}

func TestCalculateAPAging(t *testing.T) {
	f := newAPFixture(t)
	bill := f.approved(t)
	_, err := f.svc.RecordBillPayment(context.Background(), RecordPaymentInput{BillID: bill.ID, Amount: decimal.RequireFromString("2.50")})
	require.NoError(t, err)

	report, err := f.svc.CalculateAPAging(context.Background(), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1300.00", report.Summary.Current.StringFixed(2))
	assert.True(t, report.Summary.Bucket30.IsZero())

	report, err = f.svc.CalculateAPAging(context.Background(), time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "1300.00", report.Summary.Bucket60.StringFixed(2))
	require.Len(t, report.Details, 1)
	assert.Equal(t, "Acme Supplies", report.Details[0].VendorName)
	assert.Equal(t, "1300.00", report.Total.StringFixed(2))
}

func TestHandlerApproveReportsPendingLedger(t *testing.T) {
	f := newAPFixture(t)
	bill := f.bill(t)
	_, err := f.svc.VerifyBill(context.Background(), bill.ID, 4)
	require.NoError(t, err)
	f.events.err = accounting.ErrNoFiscalYearForDate

	r := chi.NewRouter()
	r.Route("/ap", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/ap/bills/%d/approve", bill.ID), nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "No fiscal year covers the document date")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/ap/bills/%d/payments", bill.ID), strings.NewReader(`{"amount":"5000"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	body := fmt.Sprintf(`{"vendor_id":%d,"bill_date":"2024-03-02","lines":[{"description":"Ink","account_id":5200,"amount":"50"}]}`, f.vendor.ID)
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ap/bills/", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ap/bills/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
