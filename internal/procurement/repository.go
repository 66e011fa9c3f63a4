package procurement

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort is the attachment persistence contract.
type RepositoryPort interface {
	Insert(ctx context.Context, a Attachment) (Attachment, error)
	Get(ctx context.Context, id int64) (Attachment, error)
	ListByOwner(ctx context.Context, owner Owner) ([]Attachment, error)
	Delete(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const attachmentColumns = `id, owner_kind, owner_id, name, attachment_type, path, COALESCE(content_type, ''), COALESCE(description, ''), uploaded_by, created_at`

func (r *Repository) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	return scanAttachment(r.pool.QueryRow(ctx, `INSERT INTO procurement_attachments
(owner_kind, owner_id, name, attachment_type, path, content_type, description, uploaded_by)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
RETURNING `+attachmentColumns,
		string(a.Kind), a.Owner.ID, a.Name, string(a.Type), a.Path, a.ContentType, a.Description, a.UploadedBy))
}

func (r *Repository) Get(ctx context.Context, id int64) (Attachment, error) {
	return scanAttachment(r.pool.QueryRow(ctx, `SELECT `+attachmentColumns+` FROM procurement_attachments WHERE id=$1`, id))
}

func (r *Repository) ListByOwner(ctx context.Context, owner Owner) ([]Attachment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+attachmentColumns+` FROM procurement_attachments
WHERE owner_kind=$1 AND owner_id=$2 ORDER BY created_at DESC, id DESC`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM procurement_attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAttachment(row pgx.Row) (Attachment, error) {
	var (
		a        Attachment
		kind     string
		fileType string
	)
	err := row.Scan(&a.ID, &kind, &a.Owner.ID, &a.Name, &fileType, &a.Path, &a.ContentType, &a.Description, &a.UploadedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attachment{}, ErrNotFound
	}
	if err != nil {
		return Attachment{}, err
	}
	a.Kind = OwnerKind(kind)
	a.Type = AttachmentType(fileType)
	return a, nil
}
