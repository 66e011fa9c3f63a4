package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// Journal names used by auto-posting.
const (
	SalesJournal     = "Sales Journal"
	PurchasesJournal = "Purchases Journal"
)

// Ledger exposes journal operations required by integrations.
type Ledger interface {
	CreateDraftEntry(ctx context.Context, in journals.CreateEntryInput) (journals.JournalEntry, error)
	Post(ctx context.Context, entryID, actorID int64) (journals.JournalEntry, error)
	FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (journals.JournalEntry, error)
}

// AccountResolver turns well-known roles into account ids.
type AccountResolver interface {
	Resolve(ctx context.Context, role mappings.Role) (int64, error)
	Policy() mappings.MissingPolicy
}

// AutopostObserver records auto-posting outcomes.
type AutopostObserver interface {
	ObserveAutopost(event, result string)
}

// LinkFunc stores the generated entry back on the source document.
type LinkFunc func(ctx context.Context, evt Event, entry journals.JournalEntry) error

// Hooks is the journal-posting handler for subledger events.
type Hooks struct {
	ledger   Ledger
	resolver AccountResolver
	logger   *slog.Logger
	observer AutopostObserver

	mu    sync.RWMutex
	links map[string][]LinkFunc
}

// NewHooks constructs integration hooks.
func NewHooks(ledger Ledger, resolver AccountResolver, logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{ledger: ledger, resolver: resolver, logger: logger, links: map[string][]LinkFunc{}}
}

// WithObserver attaches outcome metrics.
func (h *Hooks) WithObserver(o AutopostObserver) *Hooks {
	h.observer = o
	return h
}

// OnPosted registers fn for entries created from events named name.
func (h *Hooks) OnPosted(name string, fn LinkFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.links[name] = append(h.links[name], fn)
}

type lineSpec struct {
	role        mappings.Role
	accountID   int64
	description string
	debit       decimal.Decimal
	credit      decimal.Decimal
}

type posting struct {
	journal         string
	module          string
	reference       string
	description     string
	date            time.Time
	orderID         *int64
	purchaseOrderID *int64
	actorID         int64
	lines           []lineSpec
}

// Handle builds, stores and posts the journal entry for evt. It returns nil
// when the event was skipped under the skip policy.
func (h *Hooks) Handle(ctx context.Context, evt Event) (*journals.JournalEntry, error) {
	if h == nil || h.ledger == nil || h.resolver == nil {
		return nil, nil
	}
	p, err := plan(evt)
	if err != nil {
		h.observe(evt, "failed")
		return nil, err
	}
	sourceID := uuid.NewSHA1(uuid.Nil, []byte(evt.SourceKey()))

	existing, err := h.ledger.FindBySource(ctx, p.module, sourceID)
	switch {
	case err == nil:
		h.observe(evt, "duplicate")
		return &existing, nil
	case !errors.Is(err, shared.ErrEntryNotFound):
		h.observe(evt, "failed")
		return nil, err
	}

	lines, err := h.resolveLines(ctx, p.lines)
	if err != nil {
		var missing *shared.MissingAccountError
		if errors.As(err, &missing) && h.resolver.Policy() == mappings.PolicySkip {
			h.logger.Warn("auto-posting skipped: required account missing",
				slog.String("event", evt.EventName()),
				slog.String("reference", p.reference),
				slog.String("code", missing.Code),
				slog.String("role", missing.Role))
			h.observe(evt, "skipped")
			return nil, nil
		}
		h.observe(evt, "failed")
		return nil, err
	}
	if len(lines) == 0 {
		h.observe(evt, "empty")
		return nil, nil
	}

	entry, err := h.ledger.CreateDraftEntry(ctx, journals.CreateEntryInput{
		JournalName:     p.journal,
		Date:            p.date,
		Description:     p.description,
		Reference:       p.reference,
		OrderID:         p.orderID,
		PurchaseOrderID: p.purchaseOrderID,
		SourceModule:    p.module,
		SourceID:        &sourceID,
		CreatedBy:       p.actorID,
		Lines:           lines,
	})
	if errors.Is(err, shared.ErrSourceAlreadyLinked) {
		existing, err := h.ledger.FindBySource(ctx, p.module, sourceID)
		if err != nil {
			return nil, err
		}
		h.observe(evt, "duplicate")
		return &existing, nil
	}
	if err != nil {
		h.observe(evt, "failed")
		return nil, err
	}

	result := "draft"
	if entry.IsBalanced() {
		posted, err := h.ledger.Post(ctx, entry.ID, p.actorID)
		if err != nil {
			h.observe(evt, "failed")
			return &entry, fmt.Errorf("integration: post %s: %w", p.reference, err)
		}
		entry = posted
		result = "posted"
	} else {
		h.logger.Warn("auto-posted entry left in draft: unbalanced",
			slog.String("event", evt.EventName()),
			slog.String("reference", p.reference),
			slog.Int64("entry_id", entry.ID))
	}
	h.observe(evt, result)

	if err := h.link(ctx, evt, entry); err != nil {
		return &entry, err
	}
	return &entry, nil
}

func (h *Hooks) link(ctx context.Context, evt Event, entry journals.JournalEntry) error {
	h.mu.RLock()
	fns := h.links[evt.EventName()]
	h.mu.RUnlock()
	for _, fn := range fns {
		if err := fn(ctx, evt, entry); err != nil {
			return fmt.Errorf("integration: link %s: %w", evt.SourceKey(), err)
		}
	}
	return nil
}

func (h *Hooks) resolveLines(ctx context.Context, specs []lineSpec) ([]journals.LineInput, error) {
	lines := make([]journals.LineInput, 0, len(specs))
	for _, spec := range specs {
		debit, credit := shared.RoundMoney(spec.debit), shared.RoundMoney(spec.credit)
		if debit.IsZero() && credit.IsZero() {
			continue
		}
		accountID := spec.accountID
		if accountID == 0 {
			id, err := h.resolver.Resolve(ctx, spec.role)
			if err != nil {
				return nil, err
			}
			accountID = id
		}
		lines = append(lines, journals.LineInput{
			AccountID:   accountID,
			Debit:       debit,
			Credit:      credit,
			Description: spec.description,
		})
	}
	return lines, nil
}

func (h *Hooks) observe(evt Event, result string) {
	if h.observer != nil {
		h.observer.ObserveAutopost(evt.EventName(), result)
	}
}
