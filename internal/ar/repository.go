package ar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	platformshared "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// RepositoryPort is the AR persistence contract used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]InvoicePayment, error)
	OpenInvoices(ctx context.Context) ([]OpenInvoice, error)

	SetInvoiceJournalEntry(ctx context.Context, invoiceID, entryID int64) error
	SetPaymentJournalEntry(ctx context.Context, paymentID, entryID int64) error
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertCustomer(ctx context.Context, in CreateCustomerInput) (Customer, error)
	GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error)
	AdjustCustomer(ctx context.Context, id int64, balanceDelta, ytdDelta decimal.Decimal) error

	NextInvoiceNumber(ctx context.Context, year int) (string, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertInvoiceLine(ctx context.Context, invoiceID int64, line InvoiceLine) (InvoiceLine, error)
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error
	UpdateInvoicePaid(ctx context.Context, id int64, paid decimal.Decimal, status InvoiceStatus) error

	InsertPayment(ctx context.Context, p InvoicePayment) (InvoicePayment, error)
}

// Repository provides PostgreSQL backed persistence for AR.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const (
	customerColumns = `id, user_id, name, receivable_account_id, revenue_account_id, current_balance, credit_limit, ytd_sales, created_at, updated_at`
	invoiceColumns  = `id, customer_id, order_id, invoice_number, COALESCE(reference, ''), invoice_date, due_date, amount, tax_amount, paid_amount, status, journal_entry_id, COALESCE(notes, ''), created_by, created_at, updated_at`
	lineColumns     = `id, invoice_id, description, account_id, quantity, unit_price, tax_rate_id, tax_rate`
	paymentColumns  = `id, invoice_id, payment_date, amount, payment_method, COALESCE(reference, ''), COALESCE(notes, ''), journal_entry_id, created_by, created_at`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx wraps callback in a read-committed transaction; rows are locked
// explicitly with FOR UPDATE.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Customer Operations ---

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM ar_customers WHERE id=$1`, id))
}

func (r *Repository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM ar_customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Invoice Operations ---

func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
}

func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if req.CustomerID != 0 {
		args = append(args, req.CustomerID)
		query += ` AND customer_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY invoice_date DESC, id DESC`
	if req.Limit > 0 {
		args = append(args, req.Limit, req.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]InvoicePayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM invoice_payments WHERE invoice_id=$1 ORDER BY payment_date DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoicePayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.customer_id, c.name, i.status, i.due_date, i.amount + i.tax_amount - i.paid_amount
FROM invoices i JOIN ar_customers c ON c.id = i.customer_id
WHERE i.status IN ('approved', 'partially_paid', 'overdue') AND i.amount + i.tax_amount > i.paid_amount
ORDER BY i.due_date, i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenInvoice
	for rows.Next() {
		var (
			o      OpenInvoice
			status string
		)
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &status, &o.DueDate, &o.Remaining); err != nil {
			return nil, err
		}
		o.Status = InvoiceStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) SetInvoiceJournalEntry(ctx context.Context, invoiceID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE invoices SET journal_entry_id=$2, updated_at=NOW() WHERE id=$1`, invoiceID, entryID)
	return err
}

func (r *Repository) SetPaymentJournalEntry(ctx context.Context, paymentID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE invoice_payments SET journal_entry_id=$2 WHERE id=$1`, paymentID, entryID)
	return err
}

// --- Transaction Support ---

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) InsertCustomer(ctx context.Context, in CreateCustomerInput) (Customer, error) {
	c, err := scanCustomer(t.tx.QueryRow(ctx, `INSERT INTO ar_customers (user_id, name, receivable_account_id, revenue_account_id, credit_limit)
VALUES ($1, $2, $3, $4, $5) RETURNING `+customerColumns, in.UserID, in.Name, in.ReceivableAccountID, in.RevenueAccountID, in.CreditLimit))
	if platformshared.IsUniqueViolation(err, "") {
		return Customer{}, ErrCustomerExists
	}
	return c, err
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(t.tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM ar_customers WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) AdjustCustomer(ctx context.Context, id int64, balanceDelta, ytdDelta decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ar_customers SET current_balance = current_balance + $2,
ytd_sales = ytd_sales + $3, updated_at = NOW() WHERE id=$1`, id, balanceDelta, ytdDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (t *txRepo) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE $1`, prefix+"%").Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	created, err := scanInvoice(t.tx.QueryRow(ctx, `INSERT INTO invoices (customer_id, order_id, invoice_number, reference, invoice_date, due_date,
amount, tax_amount, paid_amount, status, notes, created_by)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, 0, $9, NULLIF($10, ''), $11) RETURNING `+invoiceColumns,
		inv.CustomerID, inv.OrderID, inv.InvoiceNumber, inv.Reference, inv.InvoiceDate, inv.DueDate, inv.Amount, inv.TaxAmount,
		string(inv.Status), inv.Notes, inv.CreatedBy))
	if platformshared.IsUniqueViolation(err, "uq_invoices_number") {
		return Invoice{}, ErrDuplicateInvoiceNumber
	}
	return created, err
}

func (t *txRepo) InsertInvoiceLine(ctx context.Context, invoiceID int64, line InvoiceLine) (InvoiceLine, error) {
	var l InvoiceLine
	err := t.tx.QueryRow(ctx, `INSERT INTO invoice_lines (invoice_id, description, account_id, quantity, unit_price, tax_rate_id, tax_rate)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+lineColumns,
		invoiceID, line.Description, line.AccountID, line.Quantity, line.UnitPrice, line.TaxRateID, line.TaxRate).
		Scan(&l.ID, &l.InvoiceID, &l.Description, &l.AccountID, &l.Quantity, &l.UnitPrice, &l.TaxRateID, &l.TaxRate)
	return l, err
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return loadInvoice(ctx, t.tx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id)
}

func (t *txRepo) UpdateInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (t *txRepo) UpdateInvoicePaid(ctx context.Context, id int64, paid decimal.Decimal, status InvoiceStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE invoices SET paid_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, paid, string(status))
	return err
}

func (t *txRepo) InsertPayment(ctx context.Context, p InvoicePayment) (InvoicePayment, error) {
	return scanPayment(t.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, payment_date, amount, payment_method, reference, notes, created_by)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7) RETURNING `+paymentColumns,
		p.InvoiceID, p.PaymentDate, p.Amount, string(p.Method), p.Reference, p.Notes, p.CreatedBy))
}

// --- Scanning ---

func loadInvoice(ctx context.Context, q querier, sql string, id int64) (Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, sql, id))
	if err != nil {
		return Invoice{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.AccountID, &l.Quantity, &l.UnitPrice, &l.TaxRateID, &l.TaxRate); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.ReceivableAccountID, &c.RevenueAccountID, &c.CurrentBalance, &c.CreditLimit, &c.YTDSales, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv    Invoice
		status string
		date   time.Time
		due    time.Time
	)
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.OrderID, &inv.InvoiceNumber, &inv.Reference, &date, &due, &inv.Amount,
		&inv.TaxAmount, &inv.PaidAmount, &status, &inv.JournalEntryID, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrInvoiceNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = InvoiceStatus(status)
	inv.InvoiceDate, inv.DueDate = dateOnly(date), dateOnly(due)
	return inv, nil
}

func scanPayment(row pgx.Row) (InvoicePayment, error) {
	var (
		p      InvoicePayment
		method string
	)
	err := row.Scan(&p.ID, &p.InvoiceID, &p.PaymentDate, &p.Amount, &method, &p.Reference, &p.Notes, &p.JournalEntryID, &p.CreatedBy, &p.CreatedAt)
	p.Method = PaymentMethod(method)
	return p, err
}
