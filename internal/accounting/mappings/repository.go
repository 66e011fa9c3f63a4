package mappings

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type Repository interface {
	Get(ctx context.Context, module, key string) (AccountMapping, error)
	List(ctx context.Context, module string) ([]AccountMapping, error)
	Upsert(ctx context.Context, module, key string, accountID int64) (AccountMapping, error)
	Delete(ctx context.Context, module, key string) error
	// ActiveAccountIDByCode returns the id of an active account with code.
	ActiveAccountIDByCode(ctx context.Context, code string) (int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, errors.New("accounting: module and key required")
	}
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=$1 AND key=$2`, strings.ToUpper(module), key).
		Scan(&mapping.Module, &mapping.Key, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) List(ctx context.Context, module string) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=$1 ORDER BY key`, strings.ToUpper(module))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, module, key string, accountID int64) (AccountMapping, error) {
	var m AccountMapping
	err := r.db.QueryRow(ctx, `INSERT INTO account_mappings (module, key, account_id) VALUES ($1,$2,$3)
ON CONFLICT (module, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()
RETURNING module, key, account_id, created_at, updated_at`, strings.ToUpper(module), key, accountID).
		Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *repository) Delete(ctx context.Context, module, key string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM account_mappings WHERE module=$1 AND key=$2`, strings.ToUpper(module), key)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrMappingNotFound
	}
	return nil
}

func (r *repository) ActiveAccountIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM accounts WHERE code=$1 AND is_active`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrAccountNotFound
	}
	return id, err
}
