package taxes

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata/shared"
	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]TaxRate, int, error)
	Get(ctx context.Context, id int64) (TaxRate, error)
	Create(ctx context.Context, tax TaxRate) (TaxRate, error)
	Update(ctx context.Context, id int64, tax TaxRate) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

const taxColumns = `id, name, rate, COALESCE(description, ''), is_active, sales_tax_account_id, purchase_tax_account_id, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// List uses a dynamic query due to filter complexity
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]TaxRate, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND (name ILIKE $` + strconv.Itoa(len(args)) + ` OR description ILIKE $` + strconv.Itoa(len(args)) + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tax_rates`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + taxColumns + ` FROM tax_rates` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		args = append(args, filters.Limit, filters.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var taxes []TaxRate
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, 0, err
		}
		taxes = append(taxes, t)
	}
	return taxes, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (TaxRate, error) {
	t, err := scanTax(r.pool.QueryRow(ctx, `SELECT `+taxColumns+` FROM tax_rates WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxRate{}, shared.ErrNotFound
	}
	return t, err
}

func (r *repository) Create(ctx context.Context, tax TaxRate) (TaxRate, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO tax_rates (name, rate, description, is_active, sales_tax_account_id, purchase_tax_account_id)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6) RETURNING `+taxColumns,
		tax.Name, tax.Rate, tax.Description, tax.IsActive, tax.SalesTaxAccountID, tax.PurchaseTaxAccountID)
	created, err := scanTax(row)
	return created, translate(err)
}

func (r *repository) Update(ctx context.Context, id int64, tax TaxRate) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tax_rates SET name=$2, rate=$3, description=NULLIF($4, ''),
sales_tax_account_id=$5, purchase_tax_account_id=$6, updated_at=NOW() WHERE id=$1`,
		id, tax.Name, tax.Rate, tax.Description, tax.SalesTaxAccountID, tax.PurchaseTaxAccountID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE tax_rates SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tax_rates WHERE id=$1`, id)
	if err != nil {
		if platformshared.IsForeignKeyViolation(err) {
			return shared.ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case platformshared.IsUniqueViolation(err, "uq_tax_rates_name"):
		return shared.ErrDuplicate
	case platformshared.IsForeignKeyViolation(err):
		return shared.ErrNotFound
	}
	return err
}

func scanTax(row pgx.Row) (TaxRate, error) {
	var t TaxRate
	err := row.Scan(&t.ID, &t.Name, &t.Rate, &t.Description, &t.IsActive, &t.SalesTaxAccountID, &t.PurchaseTaxAccountID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "rate":
		return "rate " + dir
	case "created":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
