package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// expiryWindow matches the dashboard definition of "expiring soon".
const expiryWindow = 90 * 24 * time.Hour

// PharmaStats summarises a pharma company's catalog.
type PharmaStats struct {
	TotalProducts        int64             `json:"totalProducts"`
	LowStockProducts     int64             `json:"lowStockProducts"`
	ExpiringProducts     int64             `json:"expiringProducts"`
	CategoryDistribution map[string]int64  `json:"categoryDistribution"`
	StockStatus          StockStatusCounts `json:"stockStatus"`
}

// StockStatusCounts buckets products by threshold position.
type StockStatusCounts struct {
	InStock    int64 `json:"inStock"`
	LowStock   int64 `json:"lowStock"`
	OutOfStock int64 `json:"outOfStock"`
}

// StoreStats summarises a medical store's purchasing activity.
type StoreStats struct {
	TotalOrders          int64            `json:"totalOrders"`
	OrdersByStatus       map[string]int64 `json:"ordersByStatus"`
	TotalSpent           decimal.Decimal  `json:"totalSpent"`
	OutstandingDue       decimal.Decimal  `json:"outstandingDue"`
	SupplierDistribution map[int64]int64  `json:"supplierDistribution"`
}

// AdminStats summarises the account base. Admin accounts are excluded from
// the totals.
type AdminStats struct {
	TotalUsers       int64            `json:"totalUsers"`
	ActiveUsers      int64            `json:"activeUsers"`
	BlockedUsers     int64            `json:"blockedUsers"`
	RoleDistribution map[string]int64 `json:"roleDistribution"`
}

// Repository computes dashboard aggregates.
type Repository interface {
	PharmaStats(ctx context.Context, pharmaID int64) (*PharmaStats, error)
	StoreStats(ctx context.Context, storeID int64) (*StoreStats, error)
	AdminStats(ctx context.Context) (*AdminStats, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) PharmaStats(ctx context.Context, pharmaID int64) (*PharmaStats, error) {
	stats := &PharmaStats{CategoryDistribution: make(map[string]int64)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE quantity <= low_stock_threshold),
			COUNT(*) FILTER (WHERE expiry_date <= $2),
			COUNT(*) FILTER (WHERE quantity > low_stock_threshold),
			COUNT(*) FILTER (WHERE quantity <= low_stock_threshold AND quantity > out_of_stock_threshold),
			COUNT(*) FILTER (WHERE quantity <= out_of_stock_threshold)
		FROM products
		WHERE company_id = $1 AND is_active = TRUE`,
		pharmaID, time.Now().Add(expiryWindow),
	).Scan(
		&stats.TotalProducts, &stats.LowStockProducts, &stats.ExpiringProducts,
		&stats.StockStatus.InStock, &stats.StockStatus.LowStock, &stats.StockStatus.OutOfStock,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT category, COUNT(*)
		FROM products
		WHERE company_id = $1 AND is_active = TRUE
		GROUP BY category`, pharmaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.CategoryDistribution[category] = count
	}
	return stats, rows.Err()
}

func (r *repository) StoreStats(ctx context.Context, storeID int64) (*StoreStats, error) {
	stats := &StoreStats{
		OrdersByStatus:       make(map[string]int64),
		SupplierDistribution: make(map[int64]int64),
		TotalSpent:           decimal.Zero,
		OutstandingDue:       decimal.Zero,
	}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(total_amount - due_amount) FILTER (WHERE status <> 'cancelled'), 0),
			COALESCE(SUM(due_amount) FILTER (WHERE status <> 'cancelled'), 0)
		FROM orders
		WHERE store_id = $1`, storeID,
	).Scan(&stats.TotalOrders, &stats.TotalSpent, &stats.OutstandingDue)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM orders WHERE store_id = $1 GROUP BY status`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.OrdersByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT pharma_id, COUNT(*) FROM orders WHERE store_id = $1 GROUP BY pharma_id`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var pharmaID, count int64
		if err := rows.Scan(&pharmaID, &count); err != nil {
			return nil, err
		}
		stats.SupplierDistribution[pharmaID] = count
	}
	return stats, rows.Err()
}

func (r *repository) AdminStats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{RoleDistribution: make(map[string]int64)}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active)
		FROM users
		WHERE role <> 'admin'`,
	).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.BlockedUsers)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT role, COUNT(*) FROM users WHERE role <> 'admin' GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		var count int64
		if err := rows.Scan(&role, &count); err != nil {
			return nil, err
		}
		stats.RoleDistribution[role] = count
	}
	return stats, rows.Err()
}
