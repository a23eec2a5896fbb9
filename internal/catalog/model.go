// Package catalog provides the medicine product master.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a medicine batch offered by a pharma company.
type Product struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name"`
	BatchNumber         string          `json:"batchNumber"`
	ExpiryDate          time.Time       `json:"expiryDate"`
	Manufacturer        string          `json:"manufacturer"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	SellingPrice        decimal.Decimal `json:"sellingPrice"`
	Quantity            int64           `json:"quantity"`
	LowStockThreshold   int64           `json:"lowStockThreshold"`
	OutOfStockThreshold int64           `json:"outOfStockThreshold"`
	CompanyID           int64           `json:"companyId"`
	IsActive            bool            `json:"isActive"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// StockState classifies a product against its thresholds.
type StockState string

const (
	StockStateIn  StockState = "inStock"
	StockStateLow StockState = "lowStock"
	StockStateOut StockState = "outOfStock"
)

// StockState returns where the current quantity sits relative to the
// configured thresholds.
func (p Product) StockState() StockState {
	switch {
	case p.Quantity <= p.OutOfStockThreshold:
		return StockStateOut
	case p.Quantity <= p.LowStockThreshold:
		return StockStateLow
	default:
		return StockStateIn
	}
}

// ExpiresWithin reports whether the batch expires inside the window.
func (p Product) ExpiresWithin(window time.Duration, now time.Time) bool {
	return p.ExpiryDate.Before(now.Add(window))
}

// Expired reports whether the batch is already past its expiry date.
func (p Product) Expired(now time.Time) bool {
	return p.ExpiryDate.Before(now)
}
