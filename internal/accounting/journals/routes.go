package journals

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/books", h.ListJournals)
	r.Post("/books", h.CreateJournal)
	r.Get("/ledger/{accountID}", h.AccountLedger)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/preview", h.Preview)
	r.Post("/{id}/lines", h.AddLine)
	r.Delete("/{id}/lines/{lineID}", h.RemoveLine)
	r.Post("/{id}/post", h.Post)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/reverse", h.Reverse)
}
