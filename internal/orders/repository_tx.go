package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
)

// NextOrderNumber allocates the next sequential number for the current
// month. The counter row upsert serialises concurrent allocations so two
// orders can never share a number.
func (t *txRepository) NextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	period := now.Format("0601")
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_counters (period, value) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET value = order_counters.value + 1
		RETURNING value`, period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%s%04d", period, seq), nil
}

// CreateOrder inserts the order header.
func (t *txRepository) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (order_number, pharma_id, store_id, status, payment_status,
			total_amount, due_amount, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		order.OrderNumber, order.PharmaID, order.StoreID, order.Status, order.PaymentStatus,
		order.TotalAmount, order.DueAmount, order.Notes,
	).Scan(&id)
	return id, err
}

// InsertItem inserts one order line.
func (t *txRepository) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
	).Scan(&id)
	return id, err
}

// InsertPayment inserts one settlement record.
func (t *txRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_payments (order_id, amount, method, reference)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		payment.OrderID, payment.Amount, payment.Method, payment.Reference,
	).Scan(&id)
	return id, err
}

// UpdateOrder updates order header fields.
func (t *txRepository) UpdateOrder(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []interface{}
	argPos := 1

	for field, value := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, value)
		argPos++
	}

	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now())
	argPos++

	args = append(args, id)

	query := fmt.Sprintf(`UPDATE orders SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	cmdTag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// SetItemPaid flips the paid flag on one line of the order.
func (t *txRepository) SetItemPaid(ctx context.Context, orderID, itemID int64, isPaid bool) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE order_items SET is_paid = $1 WHERE id = $2 AND order_id = $3`,
		isPaid, itemID, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// PaidTotal sums every payment recorded against the order.
func (t *txRepository) PaidTotal(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM order_payments WHERE order_id = $1`,
		orderID).Scan(&total)
	return total, err
}

// LockProducts fetches product rows FOR UPDATE in id order.
func (t *txRepository) LockProducts(ctx context.Context, ids []int64) ([]ProductRow, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, selling_price, quantity, is_active, expiry_date, company_id
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.ID, &p.Name, &p.SellingPrice, &p.Quantity, &p.IsActive, &p.ExpiryDate, &p.CompanyID); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AdjustStock applies a signed delta to a product quantity. The check
// constraint on the column rejects drops below zero.
func (t *txRepository) AdjustStock(ctx context.Context, productID, delta int64) error {
	cmdTag, err := t.tx.Exec(ctx,
		`UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2`,
		delta, productID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// GetByIDForUpdate locks and returns the order header with items.
func (t *txRepository) GetByIDForUpdate(ctx context.Context, id int64) (*Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}
