package reports

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

// MountRoutes registers the financial statement endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Get("/trial-balance", h.TrialBalance)
	r.Get("/balance-sheet", h.BalanceSheet)
	r.Get("/income-statement", h.IncomeStatement)
	r.Route("/statements", func(r chi.Router) {
		r.Get("/", h.ListStatements)
		r.Post("/", h.CreateStatement)
		r.Get("/{id}", h.GetStatement)
	})
}

type statementRequest struct {
	Type         StatementType `json:"statement_type" validate:"required"`
	Title        string        `json:"title" validate:"max=255"`
	Notes        string        `json:"notes"`
	FiscalYearID *int64        `json:"fiscal_year_id"`
	PeriodID     *int64        `json:"period_id"`
}

// CreateStatement renders and stores a statement snapshot.
func (h *Handler) CreateStatement(w http.ResponseWriter, r *http.Request) {
	var req statementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.Snapshot(r.Context(), SnapshotInput{
		Type:    req.Type,
		Title:   req.Title,
		Notes:   req.Notes,
		Scope:   ScopeRequest{FiscalYearID: req.FiscalYearID, PeriodID: req.PeriodID},
		ActorID: platformshared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.fail(w, "snapshot statement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, st)
}

func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	year, err := httpx.QueryInt64(r, "fiscal_year")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.ListSnapshots(r.Context(), StatementFilter{
		FiscalYearID: year,
		Type:         StatementType(r.URL.Query().Get("type")),
	})
	if err != nil {
		h.fail(w, "list statements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	st, err := h.service.GetSnapshot(r.Context(), id)
	if err != nil {
		h.fail(w, "get statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.fail(w, "dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	req, err := scopeFromQuery(r)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	report, err := h.service.TrialBalance(r.Context(), req)
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	req, err := scopeFromQuery(r)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	report, err := h.service.BalanceSheet(r.Context(), req)
	if err != nil {
		h.fail(w, "balance sheet", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) IncomeStatement(w http.ResponseWriter, r *http.Request) {
	req, err := scopeFromQuery(r)
	if err != nil {
		h.fail(w, "income statement", err)
		return
	}
	report, err := h.service.IncomeStatement(r.Context(), req)
	if err != nil {
		h.fail(w, "income statement", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func scopeFromQuery(r *http.Request) (ScopeRequest, error) {
	year, err := httpx.QueryInt64(r, "fiscal_year")
	if err != nil {
		return ScopeRequest{}, err
	}
	period, err := httpx.QueryInt64(r, "period")
	if err != nil {
		return ScopeRequest{}, err
	}
	return ScopeRequest{FiscalYearID: year, PeriodID: period}, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
