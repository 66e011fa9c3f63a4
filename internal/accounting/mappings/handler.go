package mappings

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	repo   Repository
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

type mappingRequest struct {
	AccountID int64 `json:"account_id" validate:"required,gt=0"`
}

type roleView struct {
	Role        Role   `json:"role"`
	DefaultCode string `json:"default_code"`
	AccountID   *int64 `json:"override_account_id,omitempty"`
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Put("/{role}", h.Set)
	r.Delete("/{role}", h.Clear)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.repo.List(r.Context(), Module)
	if err != nil {
		h.fail(w, "list account mappings", err)
		return
	}
	byKey := make(map[string]int64, len(overrides))
	for _, m := range overrides {
		byKey[m.Key] = m.AccountID
	}
	views := make([]roleView, 0, len(Roles))
	for _, role := range Roles {
		v := roleView{Role: role, DefaultCode: DefaultCodes[role]}
		if id, ok := byKey[string(role)]; ok {
			v.AccountID = &id
		}
		views = append(views, v)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"mappings": views})
}

func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	var req mappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.repo.Upsert(r.Context(), Module, string(role), req.AccountID)
	if err != nil {
		h.fail(w, "set account mapping", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	role, ok := roleParam(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(r.Context(), Module, string(role)); err != nil {
		h.fail(w, "clear account mapping", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func roleParam(w http.ResponseWriter, r *http.Request) (Role, bool) {
	role := Role(chi.URLParam(r, "role"))
	if !slices.Contains(Roles, role) {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Role", shared.ErrValidation.Error())
		return "", false
	}
	return role, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
