package ar

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes AR endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.showCustomer)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Post("/mark-overdue", h.markOverdue)
		r.Get("/{id}", h.showInvoice)
		r.Post("/{id}/send", h.act("send invoice", h.service.SendInvoice))
		r.Post("/{id}/approve", h.approveInvoice)
		r.Post("/{id}/cancel", h.cancelInvoice)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.recordPayment)
	})
	r.Get("/aging", h.aging)
}

type invoiceRequest struct {
	CustomerID    int64              `json:"customer_id" validate:"required,gt=0"`
	OrderID       *int64             `json:"order_id,omitempty"`
	InvoiceNumber string             `json:"invoice_number" validate:"max=64"`
	Reference     string             `json:"reference" validate:"max=128"`
	InvoiceDate   httpx.Date         `json:"invoice_date"`
	DueDate       httpx.Date         `json:"due_date"`
	Notes         string             `json:"notes"`
	Lines         []InvoiceLineInput `json:"lines" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate httpx.Date      `json:"payment_date"`
	Method      PaymentMethod   `json:"payment_method"`
	Reference   string          `json:"reference" validate:"max=128"`
	Notes       string          `json:"notes"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": customers})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create customer", err)
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), req)
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) showCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show customer", err)
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, "show customer", err)
		return
	}
	available, limited := customer.AvailableCredit()
	resp := map[string]any{"customer": customer}
	if limited {
		resp["available_credit"] = available
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	customerID, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	page := shared.ParsePageRequest(r.URL.Query())
	req := ListInvoicesRequest{
		Status: InvoiceStatus(r.URL.Query().Get("status")),
		Limit:  page.Limit(),
		Offset: page.Offset(),
	}
	if customerID != nil {
		req.CustomerID = *customerID
	}
	invoices, err := h.service.ListInvoices(r.Context(), req)
	if err != nil {
		h.fail(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": invoices})
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		CustomerID:    req.CustomerID,
		OrderID:       req.OrderID,
		InvoiceNumber: req.InvoiceNumber,
		Reference:     req.Reference,
		InvoiceDate:   req.InvoiceDate.Time,
		DueDate:       req.DueDate.Time,
		Notes:         req.Notes,
		CreatedBy:     shared.ActorFromContext(r.Context()),
		Lines:         req.Lines,
	})
	if err != nil {
		h.fail(w, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show invoice", err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, "show invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoice":   inv,
		"total":     inv.TotalAmount(),
		"remaining": inv.RemainingAmount(),
		"overdue":   inv.IsOverdue(h.service.now()),
	})
}

func (h *Handler) act(op string, fn func(ctx context.Context, id, actorID int64) (Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			h.fail(w, op, err)
			return
		}
		inv, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()))
		if err != nil {
			h.fail(w, op, err)
			return
		}
		httpx.JSON(w, http.StatusOK, inv)
	}
}

func (h *Handler) approveInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "approve invoice", err)
		return
	}
	inv, err := h.service.ApproveInvoice(r.Context(), id, shared.ActorFromContext(r.Context()))
	if lpe, ok := integration.AsLedgerPending(err); ok {
		h.pending(w, "approve invoice", lpe, inv)
		return
	}
	if err != nil {
		h.fail(w, "approve invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "cancel invoice", err)
		return
	}
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.fail(w, "cancel invoice", err)
			return
		}
	}
	inv, err := h.service.CancelInvoice(r.Context(), id, shared.ActorFromContext(r.Context()), req.Reason)
	if err != nil {
		h.fail(w, "cancel invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
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
	payment, err := h.service.RecordInvoicePayment(r.Context(), RecordPaymentInput{
		InvoiceID:   id,
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

func (h *Handler) markOverdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		h.fail(w, "mark overdue", err)
		return
	}
	ids, err := h.service.MarkOverdue(r.Context(), asOf)
	if err != nil {
		h.fail(w, "mark overdue", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"marked": ids, "count": len(ids)})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.asOf(r)
	if err != nil {
		h.fail(w, "ar aging", err)
		return
	}
	report, err := h.service.CalculateARAging(r.Context(), asOf)
	if err != nil {
		h.fail(w, "ar aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) asOf(r *http.Request) (t time.Time, err error) {
	when, err := httpx.QueryDate(r, "as_of")
	if err != nil {
		return t, err
	}
	if when == nil {
		return h.service.now(), nil
	}
	return *when, nil
}

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
