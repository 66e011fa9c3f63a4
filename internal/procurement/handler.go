package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func init() {
	httpx.RegisterErrors(
		httpx.ErrorMapping{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Attachment Not Found"},
		httpx.ErrorMapping{Err: ErrInvalidOwner, Status: http.StatusUnprocessableEntity, Title: "Invalid Owner"},
		httpx.ErrorMapping{Err: ErrInvalidAttachment, Status: http.StatusUnprocessableEntity, Title: "Invalid Attachment"},
	)
}

// Handler exposes attachment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers attachment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.attach)
	r.Get("/{id}", h.show)
	r.Delete("/{id}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.QueryInt64(r, "owner_id")
	if err != nil {
		h.fail(w, "list attachments", err)
		return
	}
	owner := Owner{Kind: OwnerKind(r.URL.Query().Get("owner_kind"))}
	if ownerID != nil {
		owner.ID = *ownerID
	}
	items, err := h.service.ListByOwner(r.Context(), owner)
	if err != nil {
		h.fail(w, "list attachments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) attach(w http.ResponseWriter, r *http.Request) {
	var req AttachInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "attach", err)
		return
	}
	req.UploadedBy = shared.ActorFromContext(r.Context())
	a, err := h.service.Attach(r.Context(), req)
	if err != nil {
		h.fail(w, "attach", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show attachment", err)
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show attachment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "delete attachment", err)
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete attachment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
