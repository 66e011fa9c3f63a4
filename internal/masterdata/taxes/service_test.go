package taxes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

type memoryRepo struct {
	nextID int64
	rows   map[int64]TaxRate
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[int64]TaxRate{}}
}

func (m *memoryRepo) List(_ context.Context, filters shared.ListFilters) ([]TaxRate, int, error) {
	var out []TaxRate
	for _, t := range m.rows {
		if filters.IsActive != nil && t.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (TaxRate, error) {
	t, ok := m.rows[id]
	if !ok {
		return TaxRate{}, shared.ErrNotFound
	}
	return t, nil
}

func (m *memoryRepo) Create(_ context.Context, tax TaxRate) (TaxRate, error) {
	for _, t := range m.rows {
		if strings.EqualFold(t.Name, tax.Name) {
			return TaxRate{}, shared.ErrDuplicate
		}
	}
	m.nextID++
	tax.ID = m.nextID
	m.rows[tax.ID] = tax
	return tax, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, tax TaxRate) error {
	cur, ok := m.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	tax.ID, tax.IsActive = id, cur.IsActive
	m.rows[id] = tax
	return nil
}

func (m *memoryRepo) SetActive(_ context.Context, id int64, active bool) error {
	cur, ok := m.rows[id]
	if !ok {
		return shared.ErrNotFound
	}
	cur.IsActive = active
	m.rows[id] = cur
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func vat(rate string) TaxRate {
	return TaxRate{Name: "VAT", Rate: decimal.RequireFromString(rate), SalesTaxAccountID: 21, PurchaseTaxAccountID: 14}
}

func TestTaxOnRoundsHalfUp(t *testing.T) {
	tax := vat("8.25")
	assert.Equal(t, "82.50", tax.TaxOn(decimal.RequireFromString("1000.00")).StringFixed(2))
	assert.Equal(t, "0.83", tax.TaxOn(decimal.RequireFromString("10.00")).StringFixed(2))
	assert.Equal(t, "VAT (8.25%)", tax.String())
}

func TestCreateValidates(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, TaxRate{Rate: decimal.NewFromInt(120)})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRequiredField)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, vat("7.125"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.Create(ctx, vat("11"))
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	_, err = svc.Create(ctx, vat("12"))
	assert.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestActiveRejectsDisabledRate(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()
	created, err := svc.Create(ctx, vat("10"))
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, created.ID, false))
	_, err = svc.Active(ctx, created.ID)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Get(ctx, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestHandlerCreateAndFetch(t *testing.T) {
	svc := NewService(newMemoryRepo())
	r := chi.NewRouter()
	r.Route("/taxes", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxes/", strings.NewReader(
		`{"name":"VAT","rate":"11","sales_tax_account_id":21,"purchase_tax_account_id":14}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/taxes/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/taxes/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/taxes/", strings.NewReader(`{"name":"GST","rate":"5"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
