// Package accounting mounts the general ledger endpoints under one router.
package accounting

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/taxes"
)

// Handler wires finance ledger endpoints.
type Handler struct {
	Accounts *accounts.Handler
	Periods  *periods.Handler
	Journals *journals.Handler
	Reports  *reports.Handler
	Mappings *mappings.Handler
	Taxes    *taxes.Handler
}

// MountRoutes registers the ledger sub-routers. Nil handlers are skipped.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	if h.Accounts != nil {
		r.Route("/accounts", h.Accounts.MountRoutes)
	}
	if h.Periods != nil {
		r.Route("/fiscal-years", h.Periods.MountRoutes)
	}
	if h.Journals != nil {
		r.Route("/journals", h.Journals.MountRoutes)
	}
	if h.Reports != nil {
		r.Route("/reports", h.Reports.MountRoutes)
	}
	if h.Mappings != nil {
		r.Route("/account-mappings", h.Mappings.MountRoutes)
	}
	if h.Taxes != nil {
		r.Route("/taxes", h.Taxes.MountRoutes)
	}
}
