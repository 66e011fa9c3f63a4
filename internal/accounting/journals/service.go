package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log platformshared.AuditLog) error
}

// PostingObserver receives the outcome of every posting attempt.
type PostingObserver interface {
	ObservePosting(result string)
}

type Service struct {
	repo     Repository
	audit    AuditPort
	observer PostingObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, logger: slog.Default(), now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver attaches posting metrics.
func (s *Service) WithObserver(o PostingObserver) *Service {
	s.observer = o
	return s
}

// WithLogger replaces the default logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) ListJournals(ctx context.Context) ([]Journal, error) {
	return s.repo.ListJournals(ctx)
}

// CreateJournal inserts a journal; codes are unique.
func (s *Service) CreateJournal(ctx context.Context, in CreateJournalInput) (Journal, error) {
	if in.Code == "" || in.Name == "" {
		return Journal{}, fmt.Errorf("%w: journal code and name required", shared.ErrValidation)
	}
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, err := tx.InsertJournal(ctx, in)
		journal = j
		return err
	})
	return journal, err
}

// GetOrCreateJournal resolves a journal by name, creating it on first use.
func (s *Service) GetOrCreateJournal(ctx context.Context, name string) (Journal, error) {
	var journal Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		j, err := getOrCreateJournal(ctx, tx, name)
		journal = j
		return err
	})
	return journal, err
}

func getOrCreateJournal(ctx context.Context, tx TxRepository, name string) (Journal, error) {
	j, err := tx.GetJournalByName(ctx, name)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, shared.ErrJournalNotFound) {
		return Journal{}, err
	}
	j, err = tx.InsertJournal(ctx, CreateJournalInput{Code: JournalCode(name), Name: name})
	if errors.Is(err, shared.ErrDuplicateCode) {
		// A concurrent transaction created it first.
		if existing, lookupErr := tx.GetJournalByName(ctx, name); lookupErr == nil {
			return existing, nil
		}
	}
	return j, err
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

// List returns a page of entries, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, platformshared.Pagination, error) {
	entries, total, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, platformshared.Pagination{}, err
	}
	return entries, platformshared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// FindBySource returns the entry created for a source document, if any.
func (s *Service) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error) {
	return s.repo.FindBySource(ctx, module, sourceID)
}

// CreateDraftEntry validates and stores a draft entry with its lines.
func (s *Service) CreateDraftEntry(ctx context.Context, in CreateEntryInput) (JournalEntry, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := s.insertDraft(ctx, tx, in)
		entry = created
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, in.CreatedBy, "journal.create", entry.ID, map[string]any{
		"entry_number": entry.EntryNumber,
		"lines":        len(entry.Lines),
	})
	return entry, nil
}

func (s *Service) insertDraft(ctx context.Context, tx TxRepository, in CreateEntryInput) (JournalEntry, error) {
	var (
		journal Journal
		err     error
	)
	if in.JournalID != 0 {
		journal, err = tx.GetJournal(ctx, in.JournalID)
	} else {
		journal, err = getOrCreateJournal(ctx, tx, in.JournalName)
	}
	if err != nil {
		return JournalEntry{}, err
	}
	yearID, err := resolveFiscalYear(ctx, tx, in.FiscalYearID, in.Date)
	if err != nil {
		return JournalEntry{}, err
	}
	if in.SourceID != nil {
		if _, err := tx.FindBySource(ctx, in.SourceModule, *in.SourceID); err == nil {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		} else if !errors.Is(err, shared.ErrEntryNotFound) {
			return JournalEntry{}, err
		}
	}
	number, err := s.entryNumber(ctx, tx, in.EntryNumber, in.Date)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := checkLineAccounts(ctx, tx, in.Lines); err != nil {
		return JournalEntry{}, err
	}
	entry, err := tx.InsertEntry(ctx, JournalEntry{
		JournalID:       journal.ID,
		FiscalYearID:    yearID,
		EntryNumber:     number,
		Date:            periods.DateOnly(in.Date),
		Description:     in.Description,
		Reference:       in.Reference,
		Status:          EntryStatusDraft,
		OrderID:         in.OrderID,
		PurchaseOrderID: in.PurchaseOrderID,
		SourceModule:    in.SourceModule,
		SourceID:        in.SourceID,
		ReversalOfID:    in.ReversalOfID,
		CreatedBy:       actorPtr(in.CreatedBy),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	for _, l := range in.Lines {
		line, err := tx.InsertLine(ctx, entry.ID, l)
		if err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, nil
}

// resolveFiscalYear picks the year whose range holds date when none is
// supplied, and otherwise checks that the supplied year holds it.
func resolveFiscalYear(ctx context.Context, tx TxRepository, id *int64, date time.Time) (int64, error) {
	if id == nil {
		year, err := tx.FiscalYearForDate(ctx, date)
		if err != nil {
			return 0, err
		}
		return year.ID, nil
	}
	year, err := tx.GetFiscalYearForShare(ctx, *id)
	if err != nil {
		return 0, err
	}
	if !year.Contains(date) {
		return 0, fmt.Errorf("%w: %s not in %s", shared.ErrDateOutsideFiscalYear, date.Format(time.DateOnly), year.Name)
	}
	return year.ID, nil
}

// entryNumber keeps a supplied number (rejecting duplicates) or draws
// JE-<year>-<seq> from the per-year counter, skipping numbers already taken
// by manual entries.
func (s *Service) entryNumber(ctx context.Context, tx TxRepository, supplied string, date time.Time) (string, error) {
	if supplied != "" {
		exists, err := tx.EntryNumberExists(ctx, supplied)
		if err != nil {
			return "", err
		}
		if exists {
			return "", shared.ErrDuplicateEntryNumber
		}
		return supplied, nil
	}
	prefix := fmt.Sprintf("JE-%d-", date.Year())
	for {
		seq, err := tx.NextEntrySequence(ctx, prefix)
		if err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s%05d", prefix, seq)
		exists, err := tx.EntryNumberExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}

func checkLineAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	if len(lines) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountID)
	}
	accts, err := tx.GetAccounts(ctx, ids)
	if err != nil {
		return err
	}
	for i, l := range lines {
		acc, ok := accts[l.AccountID]
		if !ok {
			return fmt.Errorf("line %d: %w", i+1, shared.ErrAccountNotFound)
		}
		if !acc.IsActive {
			return fmt.Errorf("line %d: %w: %s", i+1, shared.ErrAccountInactive, acc.Code)
		}
	}
	return nil
}

// AddLine appends a line to a draft entry.
func (s *Service) AddLine(ctx context.Context, entryID, actorID int64, in LineInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !current.IsDraft() {
			return fmt.Errorf("%w: lines can only be added to draft entries", shared.ErrInvalidStatus)
		}
		if err := in.Validate(len(current.Lines)); err != nil {
			return err
		}
		if err := checkLineAccounts(ctx, tx, []LineInput{in}); err != nil {
			return err
		}
		line, err := tx.InsertLine(ctx, entryID, in)
		if err != nil {
			return err
		}
		current.Lines = append(current.Lines, line)
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.line_add", entryID, map[string]any{"account_id": in.AccountID})
	return entry, nil
}

// RemoveLine deletes a line from a draft entry.
func (s *Service) RemoveLine(ctx context.Context, entryID, lineID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !current.IsDraft() {
			return fmt.Errorf("%w: lines can only be removed from draft entries", shared.ErrInvalidStatus)
		}
		if err := tx.DeleteLine(ctx, entryID, lineID); err != nil {
			return err
		}
		kept := current.Lines[:0]
		for _, l := range current.Lines {
			if l.ID != lineID {
				kept = append(kept, l)
			}
		}
		current.Lines = kept
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.line_remove", entryID, map[string]any{"line_id": lineID})
	return entry, nil
}

// Post applies a balanced draft to account balances in one transaction.
func (s *Service) Post(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if err := s.applyPosting(ctx, tx, &current, actorID); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		s.observe("failure")
		return JournalEntry{}, err
	}
	s.afterPost(ctx, entry, actorID, "journal.post")
	return entry, nil
}

// applyPosting runs the posting guards and mutates balances for an entry that
// is already locked by the caller's transaction.
func (s *Service) applyPosting(ctx context.Context, tx TxRepository, entry *JournalEntry, actorID int64) error {
	if !entry.IsDraft() {
		return fmt.Errorf("%w: only draft entries can be posted", shared.ErrInvalidStatus)
	}
	if len(entry.Lines) == 0 {
		return shared.ErrEmptyEntry
	}
	if !entry.IsBalanced() {
		return entry.unbalancedError()
	}
	year, err := tx.GetFiscalYearForShare(ctx, entry.FiscalYearID)
	if err != nil {
		return err
	}
	years, err := tx.ListFiscalYearsCovering(ctx, entry.Date)
	if err != nil {
		return err
	}
	covering, err := tx.ListPeriodsCovering(ctx, entry.Date)
	if err != nil {
		return err
	}
	if err := periods.CheckPostable(year, years, covering, entry.Date); err != nil {
		return err
	}
	locked, err := tx.LockAccounts(ctx, entry.AccountIDs())
	if err != nil {
		return err
	}
	for _, acc := range locked {
		if !acc.IsActive {
			return fmt.Errorf("%w: %s", shared.ErrAccountInactive, acc.Code)
		}
	}
	deltas, err := ComputeDeltas(entry.Lines, locked)
	if err != nil {
		return err
	}
	for _, d := range deltas {
		if d.Delta.IsZero() {
			continue
		}
		if err := tx.ApplyBalanceDelta(ctx, d.AccountID, d.Delta); err != nil {
			return err
		}
	}
	// Report cache keys derive from this version, so they move with the commit.
	if _, err := tx.BumpLedgerVersion(ctx); err != nil {
		return err
	}
	now := s.now()
	approvedBy := actorPtr(actorID)
	if err := tx.UpdateEntryStatus(ctx, entry.ID, EntryStatusPosted, approvedBy, &now); err != nil {
		return err
	}
	entry.Status = EntryStatusPosted
	entry.ApprovedBy = approvedBy
	entry.PostedAt = &now
	return nil
}

func (s *Service) afterPost(ctx context.Context, entry JournalEntry, actorID int64, action string) {
	s.observe("success")
	meta := map[string]any{
		"entry_number": entry.EntryNumber,
		"total":        shared.FormatMoney(entry.TotalAmount()),
	}
	if entry.SourceID != nil {
		meta["source_module"] = entry.SourceModule
		meta["source_id"] = entry.SourceID.String()
	}
	if entry.ReversalOfID != nil {
		meta["reversal_of"] = *entry.ReversalOfID
	}
	s.record(ctx, actorID, action, entry.ID, meta)
	s.logger.Debug("journal entry posted", slog.Int64("entry_id", entry.ID), slog.String("entry_number", entry.EntryNumber))
}

// Cancel moves a draft entry to cancelled. Posted entries must be reversed.
func (s *Service) Cancel(ctx context.Context, entryID, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if !current.IsDraft() {
			return fmt.Errorf("%w: only draft entries can be cancelled", shared.ErrInvalidStatus)
		}
		if err := tx.UpdateEntryStatus(ctx, entryID, EntryStatusCancelled, nil, nil); err != nil {
			return err
		}
		current.Status = EntryStatusCancelled
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.cancel", entryID, nil)
	return entry, nil
}

// Reverse creates and posts a mirror entry for a posted entry.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (JournalEntry, error) {
	if in.EntryID == 0 {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", shared.ErrValidation)
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if original.Status != EntryStatusPosted {
			return fmt.Errorf("%w: only posted entries can be reversed", shared.ErrInvalidStatus)
		}
		reversed, err := tx.ReversalExists(ctx, original.ID)
		if err != nil {
			return err
		}
		if reversed {
			return fmt.Errorf("%w: entry %s already reversed", shared.ErrInvalidStatus, original.EntryNumber)
		}
		date := original.Date
		yearID := &original.FiscalYearID
		if in.Date != nil {
			date = *in.Date
			yearID = nil
		}
		memo := in.Memo
		if memo == "" {
			memo = "Reversal of " + original.EntryNumber
		}
		draft, err := s.insertDraft(ctx, tx, CreateEntryInput{
			JournalID:    original.JournalID,
			FiscalYearID: yearID,
			Date:         date,
			Description:  memo,
			Reference:    original.EntryNumber,
			ReversalOfID: &original.ID,
			CreatedBy:    in.ActorID,
			Lines:        swappedLines(original.Lines),
		})
		if err != nil {
			return err
		}
		locked, err := tx.GetEntryForUpdate(ctx, draft.ID)
		if err != nil {
			return err
		}
		if err := s.applyPosting(ctx, tx, &locked, in.ActorID); err != nil {
			return err
		}
		reversal = locked
		return nil
	})
	if err != nil {
		s.observe("failure")
		return JournalEntry{}, err
	}
	s.afterPost(ctx, reversal, in.ActorID, "journal.reverse")
	return reversal, nil
}

func swappedLines(lines []JournalEntryLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, LineInput{
			AccountID:   l.AccountID,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
			Reference:   l.Reference,
		})
	}
	return out
}

// PostingPreview reports the balance changes Post would apply.
func (s *Service) PostingPreview(ctx context.Context, entryID int64) ([]AccountDelta, error) {
	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	accts, err := s.repo.GetAccounts(ctx, entry.AccountIDs())
	if err != nil {
		return nil, err
	}
	return ComputeDeltas(entry.Lines, accts)
}

// AccountLedger lists posted movements on an account with a running balance
// in the account's normal direction.
func (s *Service) AccountLedger(ctx context.Context, accountID int64) ([]LedgerLine, error) {
	accts, err := s.repo.GetAccounts(ctx, []int64{accountID})
	if err != nil {
		return nil, err
	}
	acc, ok := accts[accountID]
	if !ok {
		return nil, shared.ErrAccountNotFound
	}
	lines, err := s.repo.AccountLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}
	running := decimal.Zero
	for i := range lines {
		running = running.Add(accounts.Movement(acc.Type, lines[i].Debit, lines[i].Credit))
		lines[i].RunningBalance = running
	}
	return lines, nil
}

// CheckIntegrity recomputes balances from posted lines and lists drift.
func (s *Service) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	drift, err := s.repo.BalanceDrift(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	unbalanced, err := s.repo.UnbalancedPostedEntries(ctx)
	if err != nil {
		return IntegrityReport{}, err
	}
	return IntegrityReport{CheckedAt: s.now(), Drift: drift, UnbalancedEntries: unbalanced}, nil
}

func (s *Service) observe(result string) {
	if s.observer != nil {
		s.observer.ObservePosting(result)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, platformshared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func actorPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
