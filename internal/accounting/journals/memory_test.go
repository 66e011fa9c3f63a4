package journals

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryState struct {
	journals  map[int64]Journal
	entries   map[int64]JournalEntry
	accounts  map[int64]accounts.Account
	years     map[int64]periods.FiscalYear
	periods   map[int64]periods.FinancialPeriod
	sequences map[string]int64
	version   int64
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		journals:  make(map[int64]Journal, len(s.journals)),
		entries:   make(map[int64]JournalEntry, len(s.entries)),
		accounts:  make(map[int64]accounts.Account, len(s.accounts)),
		years:     make(map[int64]periods.FiscalYear, len(s.years)),
		periods:   make(map[int64]periods.FinancialPeriod, len(s.periods)),
		sequences: make(map[string]int64, len(s.sequences)),
		version:   s.version,
	}
	for k, v := range s.journals {
		c.journals[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]JournalEntryLine(nil), v.Lines...)
		c.entries[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.years {
		c.years[k] = v
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// memoryRepo implements Repository and TxRepository over maps. WithTx runs one
// transaction at a time and restores a snapshot when fn fails.
type memoryRepo struct {
	memoryState
	mu           sync.Mutex
	nextID       int64
	lockedOrders [][]int64

	// failDeltaAt fails the n-th ApplyBalanceDelta call (1-based).
	failDeltaAt   int
	deltaCalls    int
	failStatusErr error
	// beforeInsertJournal runs once ahead of the next InsertJournal.
	beforeInsertJournal func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{memoryState: memoryState{
		journals:  map[int64]Journal{},
		entries:   map[int64]JournalEntry{},
		accounts:  map[int64]accounts.Account{},
		years:     map[int64]periods.FiscalYear{},
		periods:   map[int64]periods.FinancialPeriod{},
		sequences: map[string]int64{},
	}}
}

func (r *memoryRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.memoryState.clone()
	if err := fn(ctx, r); err != nil {
		r.memoryState = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) ListJournals(ctx context.Context) ([]Journal, error) {
	var out []Journal
	for _, j := range r.journals {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	return r.GetEntryForUpdate(ctx, id)
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.JournalID != nil && e.JournalID != *filter.JournalID {
			continue
		}
		if filter.Search != "" && !strings.Contains(e.Description, filter.Search) && !strings.Contains(e.EntryNumber, filter.Search) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	page := platformshared.PageRequest{Page: filter.Page, PerPage: filter.PerPage}
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit()
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memoryRepo) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error) {
	for _, e := range r.entries {
		if e.SourceID != nil && *e.SourceID == sourceID && e.SourceModule == module {
			return e, nil
		}
	}
	return JournalEntry{}, shared.ErrEntryNotFound
}

func (r *memoryRepo) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account)
	for _, id := range ids {
		if acc, ok := r.accounts[id]; ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (r *memoryRepo) AccountLedger(ctx context.Context, accountID int64) ([]LedgerLine, error) {
	var entries []JournalEntry
	for _, e := range r.entries {
		if e.Status == EntryStatusPosted {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	var out []LedgerLine
	for _, e := range entries {
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				out = append(out, LedgerLine{EntryID: e.ID, EntryNumber: e.EntryNumber, LineID: l.ID, Date: e.Date, Description: e.Description, Debit: l.Debit, Credit: l.Credit})
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) BalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	debit := map[int64]decimal.Decimal{}
	credit := map[int64]decimal.Decimal{}
	for _, e := range r.entries {
		if e.Status != EntryStatusPosted {
			continue
		}
		for _, l := range e.Lines {
			debit[l.AccountID] = debit[l.AccountID].Add(l.Debit)
			credit[l.AccountID] = credit[l.AccountID].Add(l.Credit)
		}
	}
	var out []BalanceDrift
	for _, acc := range r.accounts {
		recomputed := accounts.Movement(acc.Type, debit[acc.ID], credit[acc.ID])
		if !recomputed.Equal(acc.CurrentBalance) {
			out = append(out, BalanceDrift{AccountID: acc.ID, Code: acc.Code, Cached: acc.CurrentBalance, Recomputed: recomputed})
		}
	}
	return out, nil
}

func (r *memoryRepo) UnbalancedPostedEntries(ctx context.Context) ([]int64, error) {
	var ids []int64
	for _, e := range r.entries {
		if e.Status == EntryStatusPosted && !e.IsBalanced() {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryRepo) GetJournal(ctx context.Context, id int64) (Journal, error) {
	j, ok := r.journals[id]
	if !ok {
		return Journal{}, shared.ErrJournalNotFound
	}
	return j, nil
}

func (r *memoryRepo) GetJournalByName(ctx context.Context, name string) (Journal, error) {
	for _, j := range r.journals {
		if j.Name == name {
			return j, nil
		}
	}
	return Journal{}, shared.ErrJournalNotFound
}

func (r *memoryRepo) InsertJournal(ctx context.Context, in CreateJournalInput) (Journal, error) {
	if hook := r.beforeInsertJournal; hook != nil {
		r.beforeInsertJournal = nil
		hook()
	}
	for _, j := range r.journals {
		if j.Code == in.Code || j.Name == in.Name {
			return Journal{}, fmt.Errorf("%w: journal %s", shared.ErrDuplicateCode, in.Code)
		}
	}
	j := Journal{ID: r.id(), Code: in.Code, Name: in.Name, Description: in.Description, IsActive: true}
	r.journals[j.ID] = j
	return j, nil
}

func (r *memoryRepo) FiscalYearForDate(ctx context.Context, date time.Time) (periods.FiscalYear, error) {
	var candidates []periods.FiscalYear
	for _, y := range r.years {
		if y.Contains(date) {
			candidates = append(candidates, y)
		}
	}
	if len(candidates) == 0 {
		return periods.FiscalYear{}, shared.ErrNoFiscalYearForDate
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.IsActive != b.IsActive {
			return a.IsActive
		}
		if a.IsClosed != b.IsClosed {
			return !a.IsClosed
		}
		return a.StartDate.After(b.StartDate)
	})
	return candidates[0], nil
}

func (r *memoryRepo) NextEntrySequence(ctx context.Context, prefix string) (int64, error) {
	r.sequences[prefix]++
	return r.sequences[prefix], nil
}

func (r *memoryRepo) EntryNumberExists(ctx context.Context, number string) (bool, error) {
	for _, e := range r.entries {
		if e.EntryNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) ReversalExists(ctx context.Context, entryID int64) (bool, error) {
	for _, e := range r.entries {
		if e.ReversalOfID != nil && *e.ReversalOfID == entryID && e.Status != EntryStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	e.ID = r.id()
	e.Lines = nil
	r.entries[e.ID] = e
	return e, nil
}

func (r *memoryRepo) InsertLine(ctx context.Context, entryID int64, in LineInput) (JournalEntryLine, error) {
	e, ok := r.entries[entryID]
	if !ok {
		return JournalEntryLine{}, shared.ErrEntryNotFound
	}
	line := JournalEntryLine{ID: r.id(), EntryID: entryID, AccountID: in.AccountID, Description: in.Description, Reference: in.Reference, Debit: in.Debit, Credit: in.Credit}
	e.Lines = append(e.Lines, line)
	r.entries[entryID] = e
	return line, nil
}

func (r *memoryRepo) DeleteLine(ctx context.Context, entryID, lineID int64) error {
	e, ok := r.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	for i, l := range e.Lines {
		if l.ID == lineID {
			e.Lines = append(e.Lines[:i:i], e.Lines[i+1:]...)
			r.entries[entryID] = e
			return nil
		}
	}
	return shared.ErrLineNotFound
}

func (r *memoryRepo) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	e, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	e.Lines = append([]JournalEntryLine(nil), e.Lines...)
	return e, nil
}

func (r *memoryRepo) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus, approvedBy *int64, postedAt *time.Time) error {
	if r.failStatusErr != nil {
		return r.failStatusErr
	}
	e, ok := r.entries[id]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = status
	if approvedBy != nil {
		e.ApprovedBy = approvedBy
	}
	if postedAt != nil {
		e.PostedAt = postedAt
	}
	r.entries[id] = e
	return nil
}

func (r *memoryRepo) LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	r.lockedOrders = append(r.lockedOrders, append([]int64(nil), ids...))
	return r.GetAccounts(ctx, ids)
}

func (r *memoryRepo) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	r.deltaCalls++
	if r.failDeltaAt > 0 && r.deltaCalls == r.failDeltaAt {
		return fmt.Errorf("apply delta to %d: connection reset", accountID)
	}
	acc, ok := r.accounts[accountID]
	if !ok {
		return shared.ErrAccountNotFound
	}
	acc.CurrentBalance = acc.CurrentBalance.Add(delta)
	r.accounts[accountID] = acc
	return nil
}

func (r *memoryRepo) GetFiscalYearForShare(ctx context.Context, id int64) (periods.FiscalYear, error) {
	y, ok := r.years[id]
	if !ok {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return y, nil
}

func (r *memoryRepo) ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]periods.FiscalYear, error) {
	var out []periods.FiscalYear
	for _, y := range r.years {
		if y.Contains(date) {
			out = append(out, y)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListPeriodsCovering(ctx context.Context, date time.Time) ([]periods.FinancialPeriod, error) {
	var out []periods.FinancialPeriod
	for _, p := range r.periods {
		if p.Covers(date) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) BumpLedgerVersion(ctx context.Context) (int64, error) {
	r.version++
	return r.version, nil
}

func (r *memoryRepo) addAccount(code string, typ accounts.AccountType) accounts.Account {
	acc := accounts.Account{ID: r.id(), Code: code, Name: code, Type: typ, IsActive: true, CurrentBalance: decimal.Zero}
	r.accounts[acc.ID] = acc
	return acc
}

func (r *memoryRepo) addYear(name string, start, end time.Time, active bool) periods.FiscalYear {
	y := periods.FiscalYear{ID: r.id(), Name: name, StartDate: start, EndDate: end, IsActive: active}
	r.years[y.ID] = y
	return y
}

func (r *memoryRepo) addPeriod(yearID int64, name string, start, end time.Time, status periods.PeriodStatus) periods.FinancialPeriod {
	p := periods.FinancialPeriod{ID: r.id(), FiscalYearID: yearID, Name: name, StartDate: start, EndDate: end, Status: status}
	r.periods[p.ID] = p
	return p
}

func (r *memoryRepo) balance(id int64) string {
	return r.accounts[id].CurrentBalance.StringFixed(2)
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []platformshared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log platformshared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type countingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func (o *countingObserver) ObservePosting(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = map[string]int{}
	}
	o.results[result]++
}
