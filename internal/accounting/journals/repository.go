package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListJournals(ctx context.Context) ([]Journal, error)
	GetEntry(ctx context.Context, id int64) (JournalEntry, error)
	ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error)
	FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error)
	GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	AccountLedger(ctx context.Context, accountID int64) ([]LedgerLine, error)
	BalanceDrift(ctx context.Context) ([]BalanceDrift, error)
	UnbalancedPostedEntries(ctx context.Context) ([]int64, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetJournal(ctx context.Context, id int64) (Journal, error)
	GetJournalByName(ctx context.Context, name string) (Journal, error)
	InsertJournal(ctx context.Context, in CreateJournalInput) (Journal, error)
	FiscalYearForDate(ctx context.Context, date time.Time) (periods.FiscalYear, error)
	NextEntrySequence(ctx context.Context, prefix string) (int64, error)
	EntryNumberExists(ctx context.Context, number string) (bool, error)
	FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error)
	ReversalExists(ctx context.Context, entryID int64) (bool, error)
	InsertEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertLine(ctx context.Context, entryID int64, line LineInput) (JournalEntryLine, error)
	DeleteLine(ctx context.Context, entryID, lineID int64) error
	GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus, approvedBy *int64, postedAt *time.Time) error
	GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error
	GetFiscalYearForShare(ctx context.Context, id int64) (periods.FiscalYear, error)
	ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]periods.FiscalYear, error)
	ListPeriodsCovering(ctx context.Context, date time.Time) ([]periods.FinancialPeriod, error)
	BumpLedgerVersion(ctx context.Context) (int64, error)
}

const (
	journalColumns = `id, code, name, description, is_active, created_at`
	entryColumns   = `id, journal_id, fiscal_year_id, entry_number, entry_date, description, reference, status,
order_id, purchase_order_id, source_module, source_id, reversal_of_id, created_by, approved_by, posted_at, created_at, updated_at`
	lineColumns    = `id, journal_entry_id, account_id, description, reference, debit, credit, created_at`
	accountColumns = `id, code, name, type, parent_id, description, is_active, current_balance, created_at, updated_at`
	yearColumns    = `id, name, start_date, end_date, is_active, is_closed, created_at, updated_at`
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx runs fn at READ COMMITTED. Posting serializes on explicit row locks
// (entry, accounts, ledger version) and applies balance changes as relative
// updates, so a waiter reads the winner's committed rows instead of failing
// with a serialization error.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("journals repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) ListJournals(ctx context.Context) ([]Journal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+journalColumns+` FROM journals ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *repository) GetEntry(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.pool, id)
	return entry, err
}

func (r *repository) ListEntries(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
	where, args := entryWhere(filter)
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := platformshared.PageRequest{Page: filter.Page, PerPage: filter.PerPage}
	args = append(args, page.Limit(), page.Offset())
	sql := fmt.Sprintf(`SELECT %s FROM journal_entries%s ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func entryWhere(filter ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.JournalID != nil {
		add("journal_id=$%d", *filter.JournalID)
	}
	if filter.Status != "" {
		add("status=$%d", filter.Status)
	}
	if filter.From != nil {
		add("entry_date >= $%d", periods.DateOnly(*filter.From))
	}
	if filter.To != nil {
		add("entry_date <= $%d", periods.DateOnly(*filter.To))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(entry_number ILIKE $%d OR description ILIKE $%d OR reference ILIKE $%d)", n, n, n))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *repository) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE source_module=$1 AND source_id=$2`, module, sourceID))
}

func (r *repository) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) AccountLedger(ctx context.Context, accountID int64) ([]LedgerLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.entry_number, l.id, e.entry_date, COALESCE(NULLIF(l.description, ''), e.description), l.debit, l.credit
FROM journal_entry_lines l
JOIN journal_entries e ON e.id = l.journal_entry_id
WHERE l.account_id=$1 AND e.status='posted'
ORDER BY e.entry_date, e.posted_at, l.id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LedgerLine
	for rows.Next() {
		var l LedgerLine
		if err := rows.Scan(&l.EntryID, &l.EntryNumber, &l.LineID, &l.Date, &l.Description, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) BalanceDrift(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := r.pool.Query(ctx, `WITH movements AS (
	SELECT l.account_id, SUM(l.debit) AS debit, SUM(l.credit) AS credit
	FROM journal_entry_lines l
	JOIN journal_entries e ON e.id = l.journal_entry_id
	WHERE e.status='posted'
	GROUP BY l.account_id
)
SELECT a.id, a.code, a.type, a.current_balance, COALESCE(m.debit, 0), COALESCE(m.credit, 0)
FROM accounts a LEFT JOIN movements m ON m.account_id = a.id
ORDER BY a.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BalanceDrift
	for rows.Next() {
		var (
			d             BalanceDrift
			typ           accounts.AccountType
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&d.AccountID, &d.Code, &typ, &d.Cached, &debit, &credit); err != nil {
			return nil, err
		}
		d.Recomputed = accounts.Movement(typ, debit, credit)
		if !d.Recomputed.Equal(d.Cached) {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

func (r *repository) UnbalancedPostedEntries(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id FROM journal_entries e
JOIN journal_entry_lines l ON l.journal_entry_id = e.id
WHERE e.status='posted'
GROUP BY e.id HAVING SUM(l.debit) <> SUM(l.credit)
ORDER BY e.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetJournal(ctx context.Context, id int64) (Journal, error) {
	return scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, id))
}

func (r *txRepository) GetJournalByName(ctx context.Context, name string) (Journal, error) {
	return scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE name=$1`, name))
}

// InsertJournal runs inside a savepoint so a unique violation leaves the
// outer transaction usable for a follow-up lookup.
func (r *txRepository) InsertJournal(ctx context.Context, in CreateJournalInput) (Journal, error) {
	sp, err := r.tx.Begin(ctx)
	if err != nil {
		return Journal{}, err
	}
	j, err := scanJournal(sp.QueryRow(ctx, `INSERT INTO journals (code, name, description, is_active)
VALUES ($1,$2,$3,TRUE) RETURNING `+journalColumns, in.Code, in.Name, in.Description))
	if err != nil {
		_ = sp.Rollback(ctx)
		if platformshared.IsUniqueViolation(err, "") {
			return Journal{}, fmt.Errorf("%w: journal %s", shared.ErrDuplicateCode, in.Code)
		}
		return Journal{}, err
	}
	return j, sp.Commit(ctx)
}

// FiscalYearForDate prefers the active year, then open years, then the latest.
func (r *txRepository) FiscalYearForDate(ctx context.Context, date time.Time) (periods.FiscalYear, error) {
	y, err := scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE $1::date BETWEEN start_date AND end_date
ORDER BY is_active DESC, is_closed ASC, start_date DESC, id DESC
LIMIT 1 FOR SHARE`, periods.DateOnly(date)))
	if errors.Is(err, shared.ErrFiscalYearNotFound) {
		return periods.FiscalYear{}, fmt.Errorf("%w: %s", shared.ErrNoFiscalYearForDate, date.Format(time.DateOnly))
	}
	return y, err
}

// NextEntrySequence increments the counter row for prefix. The row lock is
// held until commit, so concurrent drafts draw distinct values.
func (r *txRepository) NextEntrySequence(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_sequences (prefix, last_value) VALUES ($1, 1)
ON CONFLICT (prefix) DO UPDATE SET last_value = journal_entry_sequences.last_value + 1
RETURNING last_value`, prefix).Scan(&n)
	return n, err
}

func (r *txRepository) EntryNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE entry_number=$1)`, number).Scan(&exists)
	return exists, err
}

func (r *txRepository) FindBySource(ctx context.Context, module string, sourceID uuid.UUID) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE source_module=$1 AND source_id=$2`, module, sourceID))
}

func (r *txRepository) ReversalExists(ctx context.Context, entryID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reversal_of_id=$1 AND status<>'cancelled')`, entryID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertEntry(ctx context.Context, e JournalEntry) (JournalEntry, error) {
	inserted, err := scanEntry(r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(journal_id, fiscal_year_id, entry_number, entry_date, description, reference, status, order_id, purchase_order_id, source_module, source_id, reversal_of_id, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING `+entryColumns,
		e.JournalID, e.FiscalYearID, e.EntryNumber, periods.DateOnly(e.Date), e.Description, e.Reference, e.Status,
		e.OrderID, e.PurchaseOrderID, e.SourceModule, e.SourceID, e.ReversalOfID, e.CreatedBy))
	switch {
	case platformshared.IsUniqueViolation(err, "uq_journal_entries_number"):
		return JournalEntry{}, shared.ErrDuplicateEntryNumber
	case platformshared.IsUniqueViolation(err, "uq_journal_entries_source"):
		return JournalEntry{}, shared.ErrSourceAlreadyLinked
	}
	return inserted, err
}

func (r *txRepository) InsertLine(ctx context.Context, entryID int64, line LineInput) (JournalEntryLine, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entry_lines (journal_entry_id, account_id, description, reference, debit, credit)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+lineColumns, entryID, line.AccountID, line.Description, line.Reference, line.Debit, line.Credit)
	return scanLine(row)
}

func (r *txRepository) DeleteLine(ctx context.Context, entryID, lineID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entry_lines WHERE id=$1 AND journal_entry_id=$2`, lineID, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrLineNotFound
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines, err = loadLines(ctx, r.tx, id)
	return entry, err
}

func (r *txRepository) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus, approvedBy *int64, postedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, approved_by=COALESCE($3, approved_by), posted_at=COALESCE($4, posted_at), updated_at=NOW() WHERE id=$1`,
		id, status, approvedBy, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) GetAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

// LockAccounts takes row locks in ascending id order so concurrent posts
// touching overlapping accounts cannot deadlock.
func (r *txRepository) LockAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance = current_balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) GetFiscalYearForShare(ctx context.Context, id int64) (periods.FiscalYear, error) {
	return scanFiscalYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1 FOR SHARE`, id))
}

func (r *txRepository) ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]periods.FiscalYear, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE $1::date BETWEEN start_date AND end_date ORDER BY id FOR SHARE`, periods.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []periods.FiscalYear
	for rows.Next() {
		y, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// ListPeriodsCovering returns periods of every year whose range holds date.
func (r *txRepository) ListPeriodsCovering(ctx context.Context, date time.Time) ([]periods.FinancialPeriod, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, fiscal_year_id, name, start_date, end_date, status, closed_by, closed_at, created_at, updated_at
FROM financial_periods WHERE $1::date BETWEEN start_date AND end_date ORDER BY id FOR SHARE`, periods.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []periods.FinancialPeriod
	for rows.Next() {
		var p periods.FinancialPeriod
		if err := rows.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepository) BumpLedgerVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.tx.QueryRow(ctx, `UPDATE ledger_version SET version = version + 1, updated_at=NOW() WHERE id=1 RETURNING version`).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errors.New("journals: ledger_version row missing")
	}
	return v, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, entryID int64) ([]JournalEntryLine, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM journal_entry_lines WHERE journal_entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	if err := row.Scan(&j.ID, &j.Code, &j.Name, &j.Description, &j.IsActive, &j.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	return j, nil
}

func scanFiscalYear(row pgx.Row) (periods.FiscalYear, error) {
	var y periods.FiscalYear
	err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.IsActive, &y.IsClosed, &y.CreatedAt, &y.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return periods.FiscalYear{}, shared.ErrFiscalYearNotFound
	}
	return y, err
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.JournalID, &e.FiscalYearID, &e.EntryNumber, &e.Date, &e.Description, &e.Reference, &e.Status,
		&e.OrderID, &e.PurchaseOrderID, &e.SourceModule, &e.SourceID, &e.ReversalOfID, &e.CreatedBy, &e.ApprovedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	return e, nil
}

func scanLine(row pgx.Row) (JournalEntryLine, error) {
	var l JournalEntryLine
	if err := row.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Description, &l.Reference, &l.Debit, &l.Credit, &l.CreatedAt); err != nil {
		return JournalEntryLine{}, err
	}
	return l, nil
}

func collectAccounts(rows pgx.Rows) (map[int64]accounts.Account, error) {
	defer rows.Close()
	out := make(map[int64]accounts.Account)
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Description, &a.IsActive, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}
