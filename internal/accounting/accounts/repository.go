package accounts

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

// Repository persists chart of accounts nodes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	Insert(ctx context.Context, in CreateInput) (Account, error)
	UpdateDetails(ctx context.Context, id int64, in UpdateInput) error
	UpdateParent(ctx context.Context, id int64, parentID *int64) error
	LockTree(ctx context.Context) error
	SetActive(ctx context.Context, id int64, active bool) error
	CountReferences(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

const accountColumns = `id, code, name, type, parent_id, description, is_active, current_balance, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx executes fn within a read-committed transaction. Statements issued
// after LockTree see every hierarchy change committed before the lock.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounts repository not initialised")
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

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		where = append(where, fmt.Sprintf("parent_id=$%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY code"
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Get(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
}

func (r *txRepository) GetByCode(ctx context.Context, code string) (Account, error) {
	return scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
}

func (r *txRepository) Insert(ctx context.Context, in CreateInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_id, description, is_active, current_balance)
VALUES ($1,$2,$3,$4,$5,TRUE,0) RETURNING `+accountColumns, in.Code, in.Name, in.Type, in.ParentID, in.Description)
	acc, err := scanAccount(row)
	if platformshared.IsUniqueViolation(err, "") {
		return Account{}, shared.ErrDuplicateCode
	}
	return acc, err
}

func (r *txRepository) UpdateDetails(ctx context.Context, id int64, in UpdateInput) error {
	return r.exec(ctx, `UPDATE accounts SET name=$2, description=$3, updated_at=NOW() WHERE id=$1`, id, in.Name, in.Description)
}

// LockTree serialises parent changes until the transaction ends.
func (r *txRepository) LockTree(ctx context.Context) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('accounts.tree'))`)
	return err
}

func (r *txRepository) UpdateParent(ctx context.Context, id int64, parentID *int64) error {
	return r.exec(ctx, `UPDATE accounts SET parent_id=$2, updated_at=NOW() WHERE id=$1`, id, parentID)
}

func (r *txRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, `UPDATE accounts SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
}

// CountReferences counts rows in every table that points at the account.
func (r *txRepository) CountReferences(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM journal_entry_lines WHERE account_id=$1) +
	(SELECT COUNT(*) FROM accounts WHERE parent_id=$1) +
	(SELECT COUNT(*) FROM bill_lines WHERE account_id=$1) +
	(SELECT COUNT(*) FROM invoice_lines WHERE account_id=$1) +
	(SELECT COUNT(*) FROM ap_vendors WHERE payable_account_id=$1 OR expense_account_id=$1) +
	(SELECT COUNT(*) FROM ar_customers WHERE receivable_account_id=$1 OR revenue_account_id=$1) +
	(SELECT COUNT(*) FROM tax_rates WHERE sales_tax_account_id=$1 OR purchase_tax_account_id=$1) +
	(SELECT COUNT(*) FROM account_mappings WHERE account_id=$1)`, id).Scan(&count)
	return count, err
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	err := r.exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if platformshared.IsForeignKeyViolation(err) {
		return shared.ErrAccountProtected
	}
	return err
}

func (r *txRepository) exec(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.Description, &a.IsActive, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
