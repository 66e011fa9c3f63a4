package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository reads account balances for reporting and stores statement
// snapshots.
type Repository interface {
	ActiveBalances(ctx context.Context) ([]AccountBalance, error)
	LedgerVersion(ctx context.Context) (int64, error)
	InsertStatement(ctx context.Context, st FinancialStatement) (FinancialStatement, error)
	ListStatements(ctx context.Context, filter StatementFilter) ([]FinancialStatement, error)
	GetStatement(ctx context.Context, id int64) (FinancialStatement, error)
}

const statementColumns = `id, statement_type, title, fiscal_year_id, period_id, as_of_date, notes, data, ledger_version, generated_by, generated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ActiveBalances(ctx context.Context) ([]AccountBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, type, current_balance
FROM accounts WHERE is_active ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Type, &b.Balance); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) LedgerVersion(ctx context.Context) (int64, error) {
	var v int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM ledger_version WHERE id=1`).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (r *repository) InsertStatement(ctx context.Context, st FinancialStatement) (FinancialStatement, error) {
	inserted, err := scanStatement(r.pool.QueryRow(ctx, `INSERT INTO financial_statements
(statement_type, title, fiscal_year_id, period_id, as_of_date, notes, data, ledger_version, generated_by, generated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+statementColumns,
		st.Type, st.Title, st.FiscalYearID, st.PeriodID, st.AsOf, st.Notes, st.Data, st.LedgerVersion, st.GeneratedBy, st.GeneratedAt))
	if platformshared.IsForeignKeyViolation(err) {
		return FinancialStatement{}, fmt.Errorf("%w: fiscal year %d", shared.ErrFiscalYearNotFound, st.FiscalYearID)
	}
	return inserted, err
}

func (r *repository) ListStatements(ctx context.Context, filter StatementFilter) ([]FinancialStatement, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.FiscalYearID != nil {
		args = append(args, *filter.FiscalYearID)
		clauses = append(clauses, fmt.Sprintf("fiscal_year_id=$%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, fmt.Sprintf("statement_type=$%d", len(args)))
	}
	sql := `SELECT ` + statementColumns + ` FROM financial_statements`
	if len(clauses) > 0 {
		sql += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.pool.Query(ctx, sql+` ORDER BY as_of_date DESC, statement_type, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FinancialStatement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *repository) GetStatement(ctx context.Context, id int64) (FinancialStatement, error) {
	return scanStatement(r.pool.QueryRow(ctx, `SELECT `+statementColumns+` FROM financial_statements WHERE id=$1`, id))
}

func scanStatement(row pgx.Row) (FinancialStatement, error) {
	var st FinancialStatement
	err := row.Scan(&st.ID, &st.Type, &st.Title, &st.FiscalYearID, &st.PeriodID, &st.AsOf, &st.Notes, &st.Data,
		&st.LedgerVersion, &st.GeneratedBy, &st.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FinancialStatement{}, shared.ErrStatementNotFound
	}
	return st, err
}
