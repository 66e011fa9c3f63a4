package ap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler manages AP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vendors", func(r chi.Router) {
		r.Get("/", h.listVendors)
		r.Post("/", h.createVendor)
		r.Get("/{id}", h.showVendor)
	})
	r.Route("/bills", func(r chi.Router) {
		r.Get("/", h.listBills)
		r.Post("/", h.createBill)
		r.Get("/{id}", h.showBill)
		r.Post("/{id}/verify", h.verifyBill)
		r.Post("/{id}/approve", h.approveBill)
		r.Post("/{id}/dispute", h.disputeBill)
		r.Post("/{id}/cancel", h.cancelBill)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.recordPayment)
	})
	r.Get("/aging", h.aging)
}

type billRequest struct {
	VendorID        int64           `json:"vendor_id" validate:"required,gt=0"`
	PurchaseOrderID *int64          `json:"purchase_order_id,omitempty"`
	BillNumber      string          `json:"bill_number" validate:"max=64"`
	Reference       string          `json:"reference" validate:"max=128"`
	BillDate        httpx.Date      `json:"bill_date"`
	DueDate         httpx.Date      `json:"due_date"`
	Notes           string          `json:"notes"`
	Lines           []BillLineInput `json:"lines" validate:"required,min=1,dive"`
}

type noteRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate httpx.Date      `json:"payment_date"`
	Method      PaymentMethod   `json:"payment_method"`
	Reference   string          `json:"reference" validate:"max=128"`
	Notes       string          `json:"notes"`
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context())
	if err != nil {
		h.fail(w, "list vendors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": vendors})
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create vendor", err)
		return
	}
	vendor, err := h.service.CreateVendor(r.Context(), req)
	if err != nil {
		h.fail(w, "create vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, vendor)
}

func (h *Handler) showVendor(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show vendor", err)
		return
	}
	vendor, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		h.fail(w, "show vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	vendorID, err := httpx.QueryInt64(r, "vendor_id")
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	page := shared.ParsePageRequest(r.URL.Query())
	req := ListBillsRequest{
		Status: BillStatus(r.URL.Query().Get("status")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}
	if vendorID != nil {
		req.VendorID = *vendorID
	}
	bills, err := h.service.ListBills(r.Context(), req)
	if err != nil {
		h.fail(w, "list bills", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": bills})
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create bill", err)
		return
	}
	bill, err := h.service.CreateBill(r.Context(), CreateBillInput{
		VendorID:        req.VendorID,
		PurchaseOrderID: req.PurchaseOrderID,
		BillNumber:      req.BillNumber,
		Reference:       req.Reference,
		BillDate:        req.BillDate.Time,
		DueDate:         req.DueDate.Time,
		Notes:           req.Notes,
		CreatedBy:       shared.ActorFromContext(r.Context()),
		Lines:           req.Lines,
	})
	if err != nil {
		h.fail(w, "create bill", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) showBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show bill", err)
		return
	}
	bill, err := h.service.GetBill(r.Context(), id)
	if err != nil {
		h.fail(w, "show bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"bill":      bill,
		"total":     bill.TotalAmount(),
		"remaining": bill.RemainingAmount(),
	})
}

func (h *Handler) verifyBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "verify bill", err)
		return
	}
	bill, err := h.service.VerifyBill(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "verify bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) approveBill(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "approve bill", err)
		return
	}
	bill, err := h.service.ApproveBill(r.Context(), id, shared.ActorFromContext(r.Context()))
	if lpe, ok := integration.AsLedgerPending(err); ok {
		h.pending(w, "approve bill", lpe, bill)
		return
	}
	if err != nil {
		h.fail(w, "approve bill", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) disputeBill(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, "dispute bill", h.service.DisputeBill)
}

func (h *Handler) cancelBill(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, "cancel bill", h.service.CancelBill)
}

func (h *Handler) withReason(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id, actorID int64, reason string) (Bill, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, op, err)
		return
	}
	var req noteRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, op, err)
			return
		}
	}
	bill, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": payments})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "record payment", err)
		return
	}
	payment, err := h.service.RecordBillPayment(r.Context(), RecordPaymentInput{
		BillID:      id,
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate.Time,
		Method:      req.Method,
		Reference:   req.Reference,
		Notes:       req.Notes,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if lpe, ok := integration.AsLedgerPending(err); ok {
		h.pending(w, "record payment", lpe, payment)
		return
	}
	if err != nil {
		h.fail(w, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		h.fail(w, "ap aging", err)
		return
	}
	when := h.service.now()
	if asOf != nil {
		when = *asOf
	}
	report, err := h.service.CalculateAPAging(r.Context(), when)
	if err != nil {
		h.fail(w, "ap aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// pending answers 202 when the document was stored but its journal entry
// still has to be posted.
func (h *Handler) pending(w http.ResponseWriter, op string, lpe *integration.LedgerPostError, data any) {
	h.logger.Warn(op, slog.Bool("retryable", lpe.Retryable), slog.Any("error", lpe.Err))
	httpx.JSON(w, http.StatusAccepted, map[string]any{
		"data":      data,
		"warning":   lpe.Message,
		"retryable": lpe.Retryable,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
