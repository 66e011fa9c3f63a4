package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists fiscal years and periods.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListFiscalYears(ctx context.Context) ([]FiscalYear, error)
	GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error)
	ActiveFiscalYear(ctx context.Context) (FiscalYear, error)
	ListPeriods(ctx context.Context, fiscalYearID int64) ([]FinancialPeriod, error)
	GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error)
	GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error)
	DeactivateOtherYears(ctx context.Context, id int64) error
	SetFiscalYearActive(ctx context.Context, id int64, active bool) error
	MarkFiscalYearClosed(ctx context.Context, id int64) error
	PeriodNameExists(ctx context.Context, fiscalYearID int64, name string) (bool, error)
	InsertPeriod(ctx context.Context, in CreatePeriodInput) (FinancialPeriod, error)
	GetPeriodForUpdate(ctx context.Context, id int64) (FinancialPeriod, error)
	UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus, closedBy *int64, closedAt *time.Time) error
	ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]FiscalYear, error)
	ListPeriodsCovering(ctx context.Context, date time.Time) ([]FinancialPeriod, error)
}

const (
	yearColumns   = `id, name, start_date, end_date, is_active, is_closed, created_at, updated_at`
	periodColumns = `id, fiscal_year_id, name, start_date, end_date, status, closed_by, closed_at, created_at, updated_at`
)

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("periods repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *repository) ListFiscalYears(ctx context.Context) ([]FiscalYear, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years ORDER BY start_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []FiscalYear
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (r *repository) GetFiscalYear(ctx context.Context, id int64) (FiscalYear, error) {
	return scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1`, id))
}

func (r *repository) ActiveFiscalYear(ctx context.Context) (FiscalYear, error) {
	y, err := scanYear(r.pool.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE is_active LIMIT 1`))
	if errors.Is(err, shared.ErrFiscalYearNotFound) {
		return FiscalYear{}, shared.ErrNoActiveFiscalYear
	}
	return y, err
}

func (r *repository) ListPeriods(ctx context.Context, fiscalYearID int64) ([]FinancialPeriod, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE fiscal_year_id=$1 ORDER BY start_date`, fiscalYearID)
	if err != nil {
		return nil, err
	}
	return collectPeriods(rows)
}

func (r *repository) GetPeriod(ctx context.Context, id int64) (FinancialPeriod, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE id=$1`, id))
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertFiscalYear(ctx context.Context, in CreateFiscalYearInput) (FiscalYear, error) {
	return scanYear(r.tx.QueryRow(ctx, `INSERT INTO fiscal_years (name, start_date, end_date, is_active, is_closed)
VALUES ($1,$2,$3,FALSE,FALSE) RETURNING `+yearColumns, in.Name, DateOnly(in.StartDate), DateOnly(in.EndDate)))
}

func (r *txRepository) GetFiscalYearForUpdate(ctx context.Context, id int64) (FiscalYear, error) {
	return scanYear(r.tx.QueryRow(ctx, `SELECT `+yearColumns+` FROM fiscal_years WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) DeactivateOtherYears(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE fiscal_years SET is_active=FALSE, updated_at=NOW() WHERE id<>$1 AND is_active`, id)
	return err
}

func (r *txRepository) SetFiscalYearActive(ctx context.Context, id int64, active bool) error {
	return r.execYear(ctx, `UPDATE fiscal_years SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
}

func (r *txRepository) MarkFiscalYearClosed(ctx context.Context, id int64) error {
	return r.execYear(ctx, `UPDATE fiscal_years SET is_closed=TRUE, updated_at=NOW() WHERE id=$1`, id)
}

func (r *txRepository) PeriodNameExists(ctx context.Context, fiscalYearID int64, name string) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM financial_periods WHERE fiscal_year_id=$1 AND name=$2)`, fiscalYearID, name).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertPeriod(ctx context.Context, in CreatePeriodInput) (FinancialPeriod, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `INSERT INTO financial_periods (fiscal_year_id, name, start_date, end_date, status)
VALUES ($1,$2,$3,$4,'open') RETURNING `+periodColumns, in.FiscalYearID, in.Name, DateOnly(in.StartDate), DateOnly(in.EndDate)))
	if platformshared.IsUniqueViolation(err, "uq_financial_periods_year_name") {
		return FinancialPeriod{}, shared.ErrDuplicatePeriodName
	}
	return p, err
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, id int64) (FinancialPeriod, error) {
	return scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM financial_periods WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdatePeriodStatus(ctx context.Context, id int64, status PeriodStatus, closedBy *int64, closedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE financial_periods SET status=$2, closed_by=$3, closed_at=$4, updated_at=NOW() WHERE id=$1`, id, status, closedBy, closedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrPeriodNotFound
	}
	return nil
}

func (r *txRepository) ListFiscalYearsCovering(ctx context.Context, date time.Time) ([]FiscalYear, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+yearColumns+` FROM fiscal_years
WHERE $1::date BETWEEN start_date AND end_date ORDER BY id FOR SHARE`, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FiscalYear
	for rows.Next() {
		y, err := scanYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

// ListPeriodsCovering returns the periods of every year whose range holds date.
func (r *txRepository) ListPeriodsCovering(ctx context.Context, date time.Time) ([]FinancialPeriod, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM financial_periods
WHERE $1::date BETWEEN start_date AND end_date ORDER BY id FOR SHARE`, DateOnly(date))
	if err != nil {
		return nil, err
	}
	return collectPeriods(rows)
}

func (r *txRepository) execYear(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrFiscalYearNotFound
	}
	return nil
}

func scanYear(row pgx.Row) (FiscalYear, error) {
	var y FiscalYear
	err := row.Scan(&y.ID, &y.Name, &y.StartDate, &y.EndDate, &y.IsActive, &y.IsClosed, &y.CreatedAt, &y.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FiscalYear{}, shared.ErrFiscalYearNotFound
		}
		return FiscalYear{}, err
	}
	return y, nil
}

func scanPeriod(row pgx.Row) (FinancialPeriod, error) {
	var p FinancialPeriod
	err := row.Scan(&p.ID, &p.FiscalYearID, &p.Name, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FinancialPeriod{}, shared.ErrPeriodNotFound
		}
		return FinancialPeriod{}, err
	}
	return p, nil
}

func collectPeriods(rows pgx.Rows) ([]FinancialPeriod, error) {
	defer rows.Close()
	var out []FinancialPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
