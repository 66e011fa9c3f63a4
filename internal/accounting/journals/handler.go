package journals

import (
	"log/slog"
	"net/http"
	"strings"

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

type entryRequest struct {
	JournalID       int64       `json:"journal_id"`
	JournalName     string      `json:"journal_name" validate:"max=100"`
	FiscalYearID    *int64      `json:"fiscal_year_id"`
	EntryNumber     string      `json:"entry_number" validate:"max=50"`
	Date            httpx.Date  `json:"date"`
	Description     string      `json:"description" validate:"max=500"`
	Reference       string      `json:"reference" validate:"max=100"`
	OrderID         *int64      `json:"order_id"`
	PurchaseOrderID *int64      `json:"purchase_order_id"`
	Post            bool        `json:"post"`
	Lines           []LineInput `json:"lines" validate:"dive"`
}

type reverseRequest struct {
	Memo string     `json:"memo" validate:"max=500"`
	Date httpx.Date `json:"date"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	journalID, err := httpx.QueryInt64(r, "journal_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := platformshared.ParsePageRequest(q)
	filter := ListFilter{
		JournalID: journalID,
		Status:    EntryStatus(strings.ToLower(q.Get("status"))),
		Search:    q.Get("q"),
		Page:      page.Page,
		PerPage:   page.PerPage,
	}
	if filter.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, pagination, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journal entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "pagination": pagination})
}

func (h *Handler) ListJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := h.service.ListJournals(r.Context())
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": journals})
}

func (h *Handler) CreateJournal(w http.ResponseWriter, r *http.Request) {
	var req CreateJournalInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	journal, err := h.service.CreateJournal(r.Context(), req)
	if err != nil {
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, journal)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	deltas, err := h.service.PostingPreview(r.Context(), id)
	if err != nil {
		h.fail(w, "preview posting", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deltas": deltas})
}

// Create stores a draft and, when requested, posts it straight away.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := platformshared.ActorFromContext(r.Context())
	entry, err := h.service.CreateDraftEntry(r.Context(), CreateEntryInput{
		JournalID:       req.JournalID,
		JournalName:     req.JournalName,
		FiscalYearID:    req.FiscalYearID,
		EntryNumber:     req.EntryNumber,
		Date:            req.Date.Time,
		Description:     req.Description,
		Reference:       req.Reference,
		OrderID:         req.OrderID,
		PurchaseOrderID: req.PurchaseOrderID,
		CreatedBy:       actorID,
		Lines:           req.Lines,
	})
	if err != nil {
		h.fail(w, "create journal entry", err)
		return
	}
	if req.Post {
		entry, err = h.service.Post(r.Context(), entry.ID, actorID)
		if err != nil {
			h.fail(w, "post journal entry", err)
			return
		}
	}
	httpx.JSON(w, http.StatusCreated, entryView(entry))
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req LineInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.AddLine(r.Context(), id, platformshared.ActorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "add journal line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryView(entry))
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lineID, err := httpx.IDParam(r, "lineID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.RemoveLine(r.Context(), id, lineID, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "remove journal line", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "post journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Cancel(r.Context(), id, platformshared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "cancel journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entryView(entry))
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	entry, err := h.service.Reverse(r.Context(), ReverseInput{
		EntryID: id,
		ActorID: platformshared.ActorFromContext(r.Context()),
		Memo:    strings.TrimSpace(req.Memo),
		Date:    req.Date.Ptr(),
	})
	if err != nil {
		h.fail(w, "reverse journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entryView(entry))
}

func (h *Handler) AccountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines, err := h.service.AccountLedger(r.Context(), id)
	if err != nil {
		h.fail(w, "account ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_id": id, "lines": lines})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func entryView(e JournalEntry) map[string]any {
	return map[string]any{
		"entry":        e,
		"total_debit":  e.TotalDebit().StringFixed(2),
		"total_credit": e.TotalCredit().StringFixed(2),
		"balanced":     e.IsBalanced(),
	}
}
