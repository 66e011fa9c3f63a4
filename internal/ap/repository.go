package ap

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

// Repository defines AP data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetVendor(ctx context.Context, id int64) (Vendor, error)
	ListVendors(ctx context.Context) ([]Vendor, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error)
	ListPayments(ctx context.Context, billID int64) ([]BillPayment, error)
	OpenBills(ctx context.Context) ([]OpenBill, error)

	SetBillJournalEntry(ctx context.Context, billID, entryID int64) error
	SetPaymentJournalEntry(ctx context.Context, paymentID, entryID int64) error
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	InsertVendor(ctx context.Context, in CreateVendorInput) (Vendor, error)
	GetVendorForUpdate(ctx context.Context, id int64) (Vendor, error)
	AdjustVendor(ctx context.Context, id int64, balanceDelta, ytdDelta decimal.Decimal) error

	NextBillNumber(ctx context.Context, vendorID int64, year int) (string, error)
	InsertBill(ctx context.Context, bill Bill) (Bill, error)
	InsertBillLine(ctx context.Context, billID int64, line BillLine) (BillLine, error)
	GetBillForUpdate(ctx context.Context, id int64) (Bill, error)
	UpdateBillStatus(ctx context.Context, id int64, status BillStatus) error
	UpdateBillPaid(ctx context.Context, id int64, paid decimal.Decimal, status BillStatus) error

	InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error)
}

var _ Repository = (*pgRepository)(nil)
var _ TxRepository = (*pgTxRepository)(nil)

const (
	vendorColumns  = `id, procurement_vendor_id, name, payable_account_id, expense_account_id, current_balance, ytd_purchases, created_at, updated_at`
	billColumns    = `id, vendor_id, purchase_order_id, bill_number, COALESCE(reference, ''), bill_date, due_date, amount, tax_amount, paid_amount, status, journal_entry_id, COALESCE(notes, ''), created_by, created_at, updated_at`
	lineColumns    = `id, bill_id, description, account_id, amount, tax_rate_id, tax_rate`
	paymentColumns = `id, bill_id, payment_date, amount, payment_method, COALESCE(reference, ''), COALESCE(notes, ''), journal_entry_id, created_by, created_at`
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *pgRepository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM ap_vendors WHERE id=$1`, id))
}

func (r *pgRepository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vendorColumns+` FROM ap_vendors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *pgRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	return loadBill(ctx, r.pool, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id)
}

func (r *pgRepository) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE 1=1`
	args := []any{}
	if req.Status != "" {
		args = append(args, string(req.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if req.VendorID != 0 {
		args = append(args, req.VendorID)
		query += ` AND vendor_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY bill_date DESC, id DESC`
	if req.Limit > 0 {
		args = append(args, req.Limit, req.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgRepository) ListPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM bill_payments WHERE bill_id=$1 ORDER BY payment_date DESC, id DESC`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := rows.Scan(&p.ID, &p.BillID, &p.PaymentDate, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.JournalEntryID, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) OpenBills(ctx context.Context) ([]OpenBill, error) {
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.vendor_id, v.name, b.due_date, b.amount + b.tax_amount - b.paid_amount
FROM bills b JOIN ap_vendors v ON v.id = b.vendor_id
WHERE b.status IN ('approved', 'partial') AND b.amount + b.tax_amount > b.paid_amount
ORDER BY b.due_date, b.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OpenBill
	for rows.Next() {
		var b OpenBill
		if err := rows.Scan(&b.ID, &b.VendorID, &b.VendorName, &b.DueDate, &b.Remaining); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgRepository) SetBillJournalEntry(ctx context.Context, billID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE bills SET journal_entry_id=$2, updated_at=NOW() WHERE id=$1`, billID, entryID)
	return err
}

func (r *pgRepository) SetPaymentJournalEntry(ctx context.Context, paymentID, entryID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE bill_payments SET journal_entry_id=$2 WHERE id=$1`, paymentID, entryID)
	return err
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) InsertVendor(ctx context.Context, in CreateVendorInput) (Vendor, error) {
	v, err := scanVendor(t.tx.QueryRow(ctx, `INSERT INTO ap_vendors (procurement_vendor_id, name, payable_account_id, expense_account_id)
VALUES ($1, $2, $3, $4) RETURNING `+vendorColumns, in.ProcurementVendorID, in.Name, in.PayableAccountID, in.ExpenseAccountID))
	if platformshared.IsUniqueViolation(err, "") {
		return Vendor{}, ErrVendorExists
	}
	return v, err
}

func (t *pgTxRepository) GetVendorForUpdate(ctx context.Context, id int64) (Vendor, error) {
	return scanVendor(t.tx.QueryRow(ctx, `SELECT `+vendorColumns+` FROM ap_vendors WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTxRepository) AdjustVendor(ctx context.Context, id int64, balanceDelta, ytdDelta decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE ap_vendors SET current_balance = current_balance + $2,
ytd_purchases = ytd_purchases + $3, updated_at = NOW() WHERE id=$1`, id, balanceDelta, ytdDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVendorNotFound
	}
	return nil
}

func (t *pgTxRepository) NextBillNumber(ctx context.Context, vendorID int64, year int) (string, error) {
	prefix := fmt.Sprintf("BILL-%d-", year)
	var count int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM bills WHERE vendor_id=$1 AND bill_number LIKE $2`, vendorID, prefix+"%").Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (t *pgTxRepository) InsertBill(ctx context.Context, b Bill) (Bill, error) {
	created, err := scanBill(t.tx.QueryRow(ctx, `INSERT INTO bills (vendor_id, purchase_order_id, bill_number, reference, bill_date, due_date,
amount, tax_amount, paid_amount, status, notes, created_by)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, 0, $9, NULLIF($10, ''), $11) RETURNING `+billColumns,
		b.VendorID, b.PurchaseOrderID, b.BillNumber, b.Reference, b.BillDate, b.DueDate, b.Amount, b.TaxAmount, string(b.Status), b.Notes, b.CreatedBy))
	if platformshared.IsUniqueViolation(err, "uq_bills_vendor_number") {
		return Bill{}, ErrDuplicateBillNumber
	}
	return created, err
}

func (t *pgTxRepository) InsertBillLine(ctx context.Context, billID int64, line BillLine) (BillLine, error) {
	var l BillLine
	err := t.tx.QueryRow(ctx, `INSERT INTO bill_lines (bill_id, description, account_id, amount, tax_rate_id, tax_rate)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+lineColumns, billID, line.Description, line.AccountID, line.Amount, line.TaxRateID, line.TaxRate).
		Scan(&l.ID, &l.BillID, &l.Description, &l.AccountID, &l.Amount, &l.TaxRateID, &l.TaxRate)
	return l, err
}

func (t *pgTxRepository) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	return loadBill(ctx, t.tx, `SELECT `+billColumns+` FROM bills WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTxRepository) UpdateBillStatus(ctx context.Context, id int64, status BillStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE bills SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	return err
}

func (t *pgTxRepository) UpdateBillPaid(ctx context.Context, id int64, paid decimal.Decimal, status BillStatus) error {
	_, err := t.tx.Exec(ctx, `UPDATE bills SET paid_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, paid, string(status))
	return err
}

func (t *pgTxRepository) InsertPayment(ctx context.Context, p BillPayment) (BillPayment, error) {
	var out BillPayment
	err := t.tx.QueryRow(ctx, `INSERT INTO bill_payments (bill_id, payment_date, amount, payment_method, reference, notes, created_by)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7) RETURNING `+paymentColumns,
		p.BillID, p.PaymentDate, p.Amount, string(p.Method), p.Reference, p.Notes, p.CreatedBy).
		Scan(&out.ID, &out.BillID, &out.PaymentDate, &out.Amount, &out.Method, &out.Reference, &out.Notes, &out.JournalEntryID, &out.CreatedBy, &out.CreatedAt)
	return out, err
}

func loadBill(ctx context.Context, q querier, sql string, id int64) (Bill, error) {
	b, err := scanBill(q.QueryRow(ctx, sql, id))
	if err != nil {
		return Bill{}, err
	}
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM bill_lines WHERE bill_id=$1 ORDER BY id`, id)
	if err != nil {
		return Bill{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.Description, &l.AccountID, &l.Amount, &l.TaxRateID, &l.TaxRate); err != nil {
			return Bill{}, err
		}
		b.Lines = append(b.Lines, l)
	}
	return b, rows.Err()
}

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.ProcurementVendorID, &v.Name, &v.PayableAccountID, &v.ExpenseAccountID, &v.CurrentBalance, &v.YTDPurchases, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Vendor{}, ErrVendorNotFound
	}
	return v, err
}

func scanBill(row pgx.Row) (Bill, error) {
	var (
		b      Bill
		status string
		date   time.Time
		due    time.Time
	)
	err := row.Scan(&b.ID, &b.VendorID, &b.PurchaseOrderID, &b.BillNumber, &b.Reference, &date, &due, &b.Amount, &b.TaxAmount,
		&b.PaidAmount, &status, &b.JournalEntryID, &b.Notes, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	if err != nil {
		return Bill{}, err
	}
	b.Status = BillStatus(status)
	b.BillDate, b.DueDate = dateOnly(date), dateOnly(due)
	return b, nil
}
