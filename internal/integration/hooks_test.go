package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type fakeLedger struct {
	nextID  int64
	entries map[uuid.UUID]journals.JournalEntry
	inputs  []journals.CreateEntryInput
	posted  []int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[uuid.UUID]journals.JournalEntry{}}
}

func (l *fakeLedger) CreateDraftEntry(_ context.Context, in journals.CreateEntryInput) (journals.JournalEntry, error) {
	if _, ok := l.entries[*in.SourceID]; ok {
		return journals.JournalEntry{}, shared.ErrSourceAlreadyLinked
	}
	l.nextID++
	l.inputs = append(l.inputs, in)
	entry := journals.JournalEntry{
		ID:           l.nextID,
		Status:       journals.EntryStatusDraft,
		Date:         in.Date,
		Reference:    in.Reference,
		Description:  in.Description,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
	}
	for _, line := range in.Lines {
		entry.Lines = append(entry.Lines, journals.JournalEntryLine{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Description: line.Description})
	}
	l.entries[*in.SourceID] = entry
	return entry, nil
}

func (l *fakeLedger) Post(_ context.Context, entryID, _ int64) (journals.JournalEntry, error) {
	for key, e := range l.entries {
		if e.ID == entryID {
			e.Status = journals.EntryStatusPosted
			l.entries[key] = e
			l.posted = append(l.posted, entryID)
			return e, nil
		}
	}
	return journals.JournalEntry{}, shared.ErrEntryNotFound
}

func (l *fakeLedger) FindBySource(_ context.Context, _ string, sourceID uuid.UUID) (journals.JournalEntry, error) {
	e, ok := l.entries[sourceID]
	if !ok {
		return journals.JournalEntry{}, shared.ErrEntryNotFound
	}
	return e, nil
}

type fakeResolver struct {
	ids    map[mappings.Role]int64
	policy mappings.MissingPolicy
}

func (r fakeResolver) Resolve(_ context.Context, role mappings.Role) (int64, error) {
	if id, ok := r.ids[role]; ok {
		return id, nil
	}
	if r.policy == mappings.PolicySuspense {
		if id, ok := r.ids[mappings.RoleSuspense]; ok {
			return id, nil
		}
	}
	return 0, &shared.MissingAccountError{Code: mappings.DefaultCodes[role], Role: string(role)}
}

func (r fakeResolver) Policy() mappings.MissingPolicy { return r.policy }

type outcomes map[string]int

func (o outcomes) ObserveAutopost(event, result string) { o[event+":"+result]++ }

func fullChart() map[mappings.Role]int64 {
	return map[mappings.Role]int64{
		mappings.RoleCash:         10,
		mappings.RoleReceivable:   12,
		mappings.RoleInventory:    13,
		mappings.RolePayable:      21,
		mappings.RoleSalesRevenue: 40,
		mappings.RoleCOGS:         50,
	}
}

func newHooks(ledger *fakeLedger, resolver fakeResolver) (*Hooks, outcomes) {
	seen := outcomes{}
	h := NewHooks(ledger, resolver, slog.New(slog.NewTextHandler(io.Discard, nil))).WithObserver(seen)
	return h, seen
}

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var completedAt = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

func TestOrderCompletedPostsSaleAndCost(t *testing.T) {
	ledger := newFakeLedger()
	h, seen := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicySkip})
	cost := amount("60")

	entry, err := h.Handle(context.Background(), OrderCompleted{
		OrderID: 7, OrderNumber: "1001", Total: amount("100"), Cost: &cost, CompletedAt: completedAt, ActorID: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, journals.EntryStatusPosted, entry.Status)

	in := ledger.inputs[0]
	assert.Equal(t, SalesJournal, in.JournalName)
	assert.Equal(t, "SO-1001", in.Reference)
	assert.Equal(t, "Sale to Customer", in.Description)
	require.NotNil(t, in.OrderID)
	assert.Equal(t, int64(7), *in.OrderID)
	require.Len(t, in.Lines, 4)
	assert.Equal(t, int64(12), in.Lines[0].AccountID)
	assert.Equal(t, int64(40), in.Lines[1].AccountID)
	assert.Equal(t, int64(50), in.Lines[2].AccountID)
	assert.Equal(t, int64(13), in.Lines[3].AccountID)
	assert.Equal(t, 1, seen["order.completed:posted"])
}

func TestReplayedEventIsIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	h, seen := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicySkip})
	evt := PurchaseOrderReceived{PurchaseOrderID: 4, PONumber: "PO-9", VendorName: "Acme", Total: amount("250"), ReceivedAt: completedAt}

	first, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, ledger.inputs, 1)
	assert.Equal(t, []int64{first.ID}, ledger.posted)
	assert.Equal(t, 1, seen["purchase_order.received:duplicate"])
	assert.Equal(t, "Purchase from Acme", ledger.inputs[0].Description)
}

func TestMissingAccountPolicies(t *testing.T) {
	chart := fullChart()
	delete(chart, mappings.RoleCOGS)
	cost := amount("5")
	evt := OrderCompleted{OrderID: 1, OrderNumber: "A", Total: amount("10"), Cost: &cost, CompletedAt: completedAt}

	t.Run("skip", func(t *testing.T) {
		ledger := newFakeLedger()
		h, seen := newHooks(ledger, fakeResolver{ids: chart, policy: mappings.PolicySkip})
		entry, err := h.Handle(context.Background(), evt)
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.Empty(t, ledger.inputs)
		assert.Equal(t, 1, seen["order.completed:skipped"])
	})

	t.Run("error", func(t *testing.T) {
		ledger := newFakeLedger()
		h, _ := newHooks(ledger, fakeResolver{ids: chart, policy: mappings.PolicyError})
		_, err := h.Handle(context.Background(), evt)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrMissingAccount)
		var missing *shared.MissingAccountError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "5000", missing.Code)
		assert.Empty(t, ledger.inputs)
	})

	t.Run("suspense", func(t *testing.T) {
		withSuspense := fullChart()
		delete(withSuspense, mappings.RoleCOGS)
		withSuspense[mappings.RoleSuspense] = 99
		ledger := newFakeLedger()
		h, _ := newHooks(ledger, fakeResolver{ids: withSuspense, policy: mappings.PolicySuspense})
		entry, err := h.Handle(context.Background(), evt)
		require.NoError(t, err)
		assert.Equal(t, journals.EntryStatusPosted, entry.Status)
		assert.Equal(t, int64(99), ledger.inputs[0].Lines[2].AccountID)
	})
}

func TestBillApprovedPostsTaxAndLinksBack(t *testing.T) {
	ledger := newFakeLedger()
	h, _ := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicyError})
	var linked int64
	h.OnPosted(EventBillApproved, func(_ context.Context, evt Event, entry journals.JournalEntry) error {
		linked = entry.ID
		assert.Equal(t, int64(31), evt.(BillApproved).BillID)
		return nil
	})

	entry, err := h.Handle(context.Background(), BillApproved{
		BillID: 31, BillNumber: "B-31", VendorName: "Paper Co", PayableAccountID: 22, BillDate: completedAt,
		Lines:    []DocumentLine{{AccountID: 60, Description: "Paper", Amount: amount("1000.00")}},
		TaxLines: []TaxLine{{AccountID: 15, TaxName: "VAT", Amount: amount("82.50")}},
		Total:    amount("1082.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, entry.ID, linked)
	assert.True(t, entry.IsBalanced())

	lines := ledger.inputs[0].Lines
	require.Len(t, lines, 3)
	assert.Equal(t, int64(15), lines[1].AccountID)
	assert.Equal(t, int64(22), lines[2].AccountID, "vendor payable account overrides the role")
	assert.Equal(t, "1082.50", lines[2].Credit.StringFixed(2))
}

func TestUnbalancedEventStaysDraft(t *testing.T) {
	ledger := newFakeLedger()
	h, seen := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicySkip})
	entry, err := h.Handle(context.Background(), InvoiceApproved{
		InvoiceID: 2, InvoiceNumber: "I-2", InvoiceDate: completedAt,
		Lines: []DocumentLine{{AccountID: 40, Amount: amount("90")}},
		Total: amount("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, journals.EntryStatusDraft, entry.Status)
	assert.Empty(t, ledger.posted)
	assert.Equal(t, 1, seen["invoice.approved:draft"])
}

func TestZeroAmountEventIsIgnored(t *testing.T) {
	ledger := newFakeLedger()
	h, seen := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicySkip})
	entry, err := h.Handle(context.Background(), BillPaymentRecorded{PaymentID: 1, Amount: decimal.Zero, PaymentDate: completedAt})
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Equal(t, 1, seen["bill_payment.recorded:empty"])
}

func TestEnvelopeRestoresTypedEvent(t *testing.T) {
	evt := InvoicePaymentRecorded{PaymentID: 5, InvoiceID: 2, InvoiceNumber: "I-2", Amount: amount("12.34"), PaymentDate: completedAt, Method: "cash"}
	raw, err := Encode(evt)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	got, ok := decoded.(InvoicePaymentRecorded)
	require.True(t, ok)
	assert.Equal(t, evt.SourceKey(), got.SourceKey())
	assert.True(t, got.Amount.Equal(evt.Amount))

	_, err = Decode([]byte(`{"name":"unknown","payload":{}}`))
	assert.Error(t, err)
}

func TestHandlerDispatchesOrderCompleted(t *testing.T) {
	ledger := newFakeLedger()
	h, _ := newHooks(ledger, fakeResolver{ids: fullChart(), policy: mappings.PolicyError})
	r := chi.NewRouter()
	r.Route("/integration/events", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), SyncDispatcher{Hooks: h}).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/integration/events/order-completed",
		strings.NewReader(`{"order_id":9,"order_number":"SO9","total":"45.10","completed_at":"2024-03-05"}`)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, ledger.inputs, 1)
	assert.Equal(t, completedAt, ledger.inputs[0].Date)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/integration/events/order-completed",
		strings.NewReader(`{"order_number":"SO9","total":"1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
