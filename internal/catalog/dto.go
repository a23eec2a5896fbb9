package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest carries the fields accepted when listing a product.
type CreateProductRequest struct {
	Name                string          `json:"name" validate:"required"`
	BatchNumber         string          `json:"batchNumber" validate:"required"`
	ExpiryDate          time.Time       `json:"expiryDate" validate:"required"`
	Manufacturer        string          `json:"manufacturer" validate:"required"`
	Category            string          `json:"category" validate:"required"`
	Description         string          `json:"description"`
	SellingPrice        decimal.Decimal `json:"sellingPrice" validate:"required"`
	Quantity            int64           `json:"quantity" validate:"gte=0"`
	LowStockThreshold   *int64          `json:"lowStockThreshold" validate:"omitempty,gte=0"`
	OutOfStockThreshold *int64          `json:"outOfStockThreshold" validate:"omitempty,gte=0"`
}

// UpdateProductRequest whitelists the mutable fields. Nil pointers leave a
// field untouched; ownership and identity columns are never settable here.
type UpdateProductRequest struct {
	Name                *string          `json:"name"`
	ExpiryDate          *time.Time       `json:"expiryDate"`
	Manufacturer        *string          `json:"manufacturer"`
	Category            *string          `json:"category"`
	Description         *string          `json:"description"`
	SellingPrice        *decimal.Decimal `json:"sellingPrice"`
	Quantity            *int64           `json:"quantity" validate:"omitempty,gte=0"`
	LowStockThreshold   *int64           `json:"lowStockThreshold" validate:"omitempty,gte=0"`
	OutOfStockThreshold *int64           `json:"outOfStockThreshold" validate:"omitempty,gte=0"`
	IsActive            *bool            `json:"isActive"`
}

// Empty reports whether nothing would change.
func (r UpdateProductRequest) Empty() bool {
	return r.Name == nil && r.ExpiryDate == nil && r.Manufacturer == nil &&
		r.Category == nil && r.Description == nil && r.SellingPrice == nil &&
		r.Quantity == nil && r.LowStockThreshold == nil &&
		r.OutOfStockThreshold == nil && r.IsActive == nil
}

// ListFilter narrows List results.
type ListFilter struct {
	CompanyID int64  // 0 means all companies
	Category  string // empty means all categories
	Search    string // matches name or manufacturer, case-insensitive
}
