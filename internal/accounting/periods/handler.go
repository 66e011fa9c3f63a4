package periods

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type fiscalYearRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	StartDate httpx.Date `json:"start_date"`
	EndDate   httpx.Date `json:"end_date"`
	Activate  bool       `json:"activate"`
}

type periodRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	StartDate httpx.Date `json:"start_date"`
	EndDate   httpx.Date `json:"end_date"`
}

// MountRoutes registers fiscal calendar endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.ListYears)
	r.Post("/", h.CreateYear)
	r.Get("/active", h.ActiveYear)
	r.Get("/{id}", h.GetYear)
	r.Post("/{id}/activate", h.ActivateYear)
	r.Post("/{id}/close", h.CloseYear)
	r.Get("/{id}/periods", h.ListPeriods)
	r.Post("/{id}/periods", h.CreatePeriod)
	r.Post("/{id}/periods/monthly", h.GenerateMonthly)
	r.Post("/periods/{periodID}/close", h.ClosePeriod)
	r.Post("/periods/{periodID}/reopen", h.ReopenPeriod)
}

func (h *Handler) ListYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.service.ListFiscalYears(r.Context())
	if err != nil {
		h.fail(w, "list fiscal years", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"fiscal_years": years})
}

func (h *Handler) ActiveYear(w http.ResponseWriter, r *http.Request) {
	year, err := h.service.ActiveFiscalYear(r.Context())
	if err != nil {
		h.fail(w, "active fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.GetFiscalYear(r.Context(), id)
	if err != nil {
		h.fail(w, "get fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) CreateYear(w http.ResponseWriter, r *http.Request) {
	var req fiscalYearRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.CreateFiscalYear(r.Context(), CreateFiscalYearInput{
		Name:      req.Name,
		StartDate: req.StartDate.Time,
		EndDate:   req.EndDate.Time,
		Activate:  req.Activate,
		ActorID:   platformshared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, year)
}

func (h *Handler) ActivateYear(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.ActivateFiscalYear(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "activate fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) CloseYear(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	year, err := h.service.CloseFiscalYear(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "close fiscal year", err)
		return
	}
	httpx.JSON(w, http.StatusOK, year)
}

func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	periods, err := h.service.ListPeriods(r.Context(), id)
	if err != nil {
		h.fail(w, "list periods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": periods})
}

func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req periodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), CreatePeriodInput{
		FiscalYearID: id,
		Name:         req.Name,
		StartDate:    req.StartDate.Time,
		EndDate:      req.EndDate.Time,
		ActorID:      platformshared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "create period", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) GenerateMonthly(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.GenerateMonthlyPeriods(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "generate periods", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"periods": created})
}

func (h *Handler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "periodID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.ClosePeriod(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "close period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "periodID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := h.service.ReopenPeriod(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "reopen period", err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
