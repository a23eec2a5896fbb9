// Package users provides account administration and profile removal.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/db"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/httpx"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
)

// Repository defines persistence operations for account administration.
type Repository interface {
	List(ctx context.Context) ([]auth.User, error)
	GetByID(ctx context.Context, id int64) (*auth.User, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	DeleteCascade(ctx context.Context, user *auth.User) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const userColumns = `id, email, password_hash, role, company_name, contact_number,
	address_street, address_city, address_state, address_pincode,
	is_active, created_at, updated_at`

// List returns every account, newest first.
func (r *repository) List(ctx context.Context) ([]auth.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

// GetByID fetches one account.
func (r *repository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Update applies whitelisted column updates.
func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
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

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	cmdTag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// DeleteCascade removes the account together with its products and orders
// in one transaction. Order items and payments go via FK cascade.
func (r *repository) DeleteCascade(ctx context.Context, user *auth.User) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE pharma_id = $1 OR store_id = $1`, user.ID); err != nil {
			return err
		}
		if user.Role == rbac.RolePharma {
			if _, err := tx.Exec(ctx, `DELETE FROM products WHERE company_id = $1`, user.ID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID); err != nil {
			return err
		}
		return nil
	})
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var user auth.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.CompanyName, &user.ContactNumber,
		&user.Address.Street, &user.Address.City, &user.Address.State, &user.Address.Pincode,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
