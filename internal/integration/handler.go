package integration

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler accepts events from collaborators outside this service.
type Handler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewHandler(logger *slog.Logger, dispatcher Dispatcher) *Handler {
	return &Handler{logger: logger, dispatcher: dispatcher, now: time.Now}
}

type orderCompletedRequest struct {
	OrderID      int64            `json:"order_id" validate:"required,gt=0"`
	OrderNumber  string           `json:"order_number" validate:"required,max=50"`
	CustomerName string           `json:"customer_name"`
	Total        decimal.Decimal  `json:"total"`
	Cost         *decimal.Decimal `json:"cost,omitempty"`
	CompletedAt  httpx.Date       `json:"completed_at"`
}

type purchaseOrderReceivedRequest struct {
	PurchaseOrderID int64           `json:"purchase_order_id" validate:"required,gt=0"`
	PONumber        string          `json:"po_number" validate:"required,max=50"`
	VendorName      string          `json:"vendor_name"`
	Total           decimal.Decimal `json:"total"`
	ReceivedAt      httpx.Date      `json:"received_at"`
}

// MountRoutes registers the inbound event endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/order-completed", h.OrderCompleted)
	r.Post("/purchase-order-received", h.PurchaseOrderReceived)
}

func (h *Handler) OrderCompleted(w http.ResponseWriter, r *http.Request) {
	var req orderCompletedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "order completed", err)
		return
	}
	if req.Total.IsNegative() || (req.Cost != nil && req.Cost.IsNegative()) {
		h.fail(w, "order completed", httpx.ErrValidation)
		return
	}
	h.dispatch(w, r, "order completed", OrderCompleted{
		OrderID:      req.OrderID,
		OrderNumber:  req.OrderNumber,
		CustomerName: req.CustomerName,
		Total:        req.Total,
		Cost:         req.Cost,
		CompletedAt:  h.dateOrToday(req.CompletedAt),
		ActorID:      platformshared.ActorFromContext(r.Context()),
	})
}

func (h *Handler) PurchaseOrderReceived(w http.ResponseWriter, r *http.Request) {
	var req purchaseOrderReceivedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "purchase order received", err)
		return
	}
	if req.Total.IsNegative() {
		h.fail(w, "purchase order received", httpx.ErrValidation)
		return
	}
	h.dispatch(w, r, "purchase order received", PurchaseOrderReceived{
		PurchaseOrderID: req.PurchaseOrderID,
		PONumber:        req.PONumber,
		VendorName:      req.VendorName,
		Total:           req.Total,
		ReceivedAt:      h.dateOrToday(req.ReceivedAt),
		ActorID:         platformshared.ActorFromContext(r.Context()),
	})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request, op string, evt Event) {
	if err := h.dispatcher.Dispatch(r.Context(), evt); err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"event": evt.EventName(), "source": evt.SourceKey()})
}

func (h *Handler) dateOrToday(d httpx.Date) time.Time {
	if t := d.Ptr(); t != nil {
		return *t
	}
	y, m, day := h.now().Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
