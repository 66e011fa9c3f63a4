package taxes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type taxRequest struct {
	Name                 string          `json:"name" validate:"required,max=100"`
	Rate                 decimal.Decimal `json:"rate"`
	Description          string          `json:"description"`
	SalesTaxAccountID    int64           `json:"sales_tax_account_id" validate:"required,gt=0"`
	PurchaseTaxAccountID int64           `json:"purchase_tax_account_id" validate:"required,gt=0"`
}

func (req taxRequest) toTax() TaxRate {
	return TaxRate{
		Name:                 req.Name,
		Rate:                 req.Rate,
		Description:          req.Description,
		SalesTaxAccountID:    req.SalesTaxAccountID,
		PurchaseTaxAccountID: req.PurchaseTaxAccountID,
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Post("/{id}/activate", h.Activate)
	r.Post("/{id}/deactivate", h.Deactivate)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := shared.FiltersFromQuery(r.URL.Query())
	if err != nil {
		h.fail(w, "list taxes", err)
		return
	}

	taxes, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list taxes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"taxes": taxes, "total": total, "page": filters.Page, "limit": filters.Limit})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "get tax", err)
		return
	}
	tax, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get tax", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tax)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "create tax", err)
		return
	}
	created, err := h.service.Create(r.Context(), req.toTax())
	if err != nil {
		h.fail(w, "create tax", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "update tax", err)
		return
	}
	var req taxRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "update tax", err)
		return
	}
	if err := h.service.Update(r.Context(), id, req.toTax()); err != nil {
		h.fail(w, "update tax", err)
		return
	}
	tax, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "update tax", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tax)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "toggle tax", err)
		return
	}
	if err := h.service.SetActive(r.Context(), id, active); err != nil {
		h.fail(w, "toggle tax", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "delete tax", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete tax", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
