package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/db"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
)

// Repository defines the interface for order persistence.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)

	// WithTx runs fn inside a repeatable-read transaction.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	NextOrderNumber(ctx context.Context, now time.Time) (string, error)
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error
	SetItemPaid(ctx context.Context, orderID, itemID int64, isPaid bool) error
	PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error)

	// LockProducts fetches product rows FOR UPDATE, ordered by id so that
	// concurrent orders over the same products cannot deadlock.
	LockProducts(ctx context.Context, ids []int64) ([]ProductRow, error)
	AdjustStock(ctx context.Context, productID, delta int64) error

	GetByIDForUpdate(ctx context.Context, id int64) (*Order, error)
}

// ProductRow is the slice of the product record the order flow needs.
type ProductRow struct {
	ID           int64
	Name         string
	SellingPrice decimal.Decimal
	Quantity     int64
	IsActive     bool
	ExpiryDate   time.Time
	CompanyID    int64
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, order_number, pharma_id, store_id, status, payment_status,
	total_amount, due_amount, stock_committed, staff_name, staff_contact,
	tracking_number, estimated_delivery, actual_delivery, notes, created_at, updated_at`

// Read queries join both parties so responses carry company names the way
// the dashboards display them.
const orderPartyColumns = `o.id, o.order_number, o.pharma_id, o.store_id, o.status, o.payment_status,
	o.total_amount, o.due_amount, o.stock_committed, o.staff_name, o.staff_contact,
	o.tracking_number, o.estimated_delivery, o.actual_delivery, o.notes, o.created_at, o.updated_at,
	p.company_name, s.company_name`

const orderPartyJoin = ` FROM orders o
	JOIN users p ON p.id = o.pharma_id
	JOIN users s ON s.id = o.store_id`

// GetByID retrieves an order with its parties, items and payments.
func (r *repository) GetByID(ctx context.Context, id int64) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderPartyColumns+orderPartyJoin+` WHERE o.id = $1`, id)
	order, err := scanOrderWithParties(row)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	payments, err := loadPayments(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	order.Payments = payments

	return order, nil
}

// List returns orders matching the filter, newest first, without line detail.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT ` + orderPartyColumns + orderPartyJoin + ` WHERE 1=1`
	var args []interface{}
	argPos := 1

	if filter.PharmaID != 0 {
		query += fmt.Sprintf(" AND o.pharma_id = $%d", argPos)
		args = append(args, filter.PharmaID)
		argPos++
	}
	if filter.StoreID != 0 {
		query += fmt.Sprintf(" AND o.store_id = $%d", argPos)
		args = append(args, filter.StoreID)
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND o.status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		order, err := scanOrderWithParties(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q queryer, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, is_paid
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.IsPaid); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadPayments(ctx context.Context, q queryer, orderID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, amount, method, reference, paid_at
		FROM order_payments WHERE order_id = $1 ORDER BY paid_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.PharmaID, &o.StoreID, &o.Status, &o.PaymentStatus,
		&o.TotalAmount, &o.DueAmount, &o.StockCommitted,
		&o.StaffName, &o.StaffContact, &o.TrackingNumber,
		&o.EstimatedDelivery, &o.ActualDelivery, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func scanOrderWithParties(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.PharmaID, &o.StoreID, &o.Status, &o.PaymentStatus,
		&o.TotalAmount, &o.DueAmount, &o.StockCommitted,
		&o.StaffName, &o.StaffContact, &o.TrackingNumber,
		&o.EstimatedDelivery, &o.ActualDelivery, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt,
		&o.PharmaName, &o.StoreName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
