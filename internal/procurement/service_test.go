package procurement

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryAttachmentRepo struct {
	items  map[int64]Attachment
	nextID int64
}

func newMemoryAttachmentRepo() *memoryAttachmentRepo {
	return &memoryAttachmentRepo{items: make(map[int64]Attachment)}
}

func (r *memoryAttachmentRepo) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Date(2024, 1, 1, 0, 0, int(r.nextID), 0, time.UTC)
	r.items[a.ID] = a
	return a, nil
}

func (r *memoryAttachmentRepo) Get(ctx context.Context, id int64) (Attachment, error) {
	a, ok := r.items[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	return a, nil
}

func (r *memoryAttachmentRepo) ListByOwner(ctx context.Context, owner Owner) ([]Attachment, error) {
	var out []Attachment
	for _, a := range r.items {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryAttachmentRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (m *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func TestAttachmentValidateRequiresSingleOwner(t *testing.T) {
	base := Attachment{Owner: Owner{Kind: OwnerRFQ, ID: 4}, Name: "quote.pdf", Type: TypeQuote, Path: "rfq/4/quote.pdf"}
	require.NoError(t, base.Validate())

	cases := map[string]func(a *Attachment){
		"unknown kind":   func(a *Attachment) { a.Kind = "invoice" },
		"missing kind":   func(a *Attachment) { a.Kind = "" },
		"zero owner id":  func(a *Attachment) { a.Owner.ID = 0 },
		"negative owner": func(a *Attachment) { a.Owner.ID = -3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := base
			mutate(&a)
			assert.ErrorIs(t, a.Validate(), ErrInvalidOwner)
		})
	}

	bad := base
	bad.Type = "spreadsheet"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAttachment)
	bad = base
	bad.Name = "  "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAttachment)

	for _, kind := range OwnerKinds {
		a := base
		a.Kind = kind
		assert.NoError(t, a.Validate(), kind)
	}
}

func TestAttachAndList(t *testing.T) {
	repo := newMemoryAttachmentRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit)
	ctx := context.Background()

	photo, err := svc.Attach(ctx, AttachInput{OwnerKind: OwnerPurchaseOrder, OwnerID: 9, Name: "Dock photo", Path: "po/9/dock.PNG", UploadedBy: 3})
	require.NoError(t, err)
	assert.Equal(t, TypeImage, photo.Type)
	assert.Equal(t, "image/png", photo.ContentType)
	require.NotNil(t, photo.UploadedBy)

	contract, err := svc.Attach(ctx, AttachInput{OwnerKind: OwnerPurchaseOrder, OwnerID: 9, Name: "Contract", Type: TypeContract, Path: "po/9/contract.bin"})
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", contract.ContentType)
	assert.Nil(t, contract.UploadedBy)

	_, err = svc.Attach(ctx, AttachInput{OwnerKind: OwnerVendor, OwnerID: 9, Name: "W9", Path: "vendor/9/w9.pdf"})
	require.NoError(t, err)

	_, err = svc.Attach(ctx, AttachInput{OwnerKind: "grn", OwnerID: 9, Name: "x", Path: "x.pdf"})
	require.ErrorIs(t, err, ErrInvalidOwner)

	items, err := svc.ListByOwner(ctx, Owner{Kind: OwnerPurchaseOrder, ID: 9})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, contract.ID, items[0].ID)

	_, err = svc.ListByOwner(ctx, Owner{Kind: OwnerPurchaseOrder})
	require.ErrorIs(t, err, ErrInvalidOwner)

	require.NoError(t, svc.Delete(ctx, photo.ID, 3))
	require.ErrorIs(t, svc.Delete(ctx, photo.ID, 3), ErrNotFound)
	require.Len(t, audit.logs, 4)
	assert.Equal(t, "purchase_order:9", audit.logs[0].Meta["owner"])
}

func TestAttachmentHandler(t *testing.T) {
	svc := NewService(newMemoryAttachmentRepo(), nil)
	r := chi.NewRouter()
	r.Route("/attachments", NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes)

	rec := httptest.NewRecorder()
	body := `{"owner_kind":"rfq_vendor","owner_id":5,"name":"Spec","attachment_type":"specification","path":"rfq/5/spec.pdf"}`
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attachments/", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"owner_kind":"rfq_vendor"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attachments/?owner_kind=rfq_vendor&owner_id=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Spec"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/attachments/", strings.NewReader(`{"owner_kind":"bogus","owner_id":5,"name":"x","path":"x"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/attachments/1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attachments/1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
