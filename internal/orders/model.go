// Package orders implements the purchase order lifecycle between medical
// stores and pharma companies.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the fulfilment lifecycle of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// Delivered and cancelled are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered || next == StatusCancelled
	default:
		return false
	}
}

// PaymentStatus summarises how much of the order total has been settled.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPartial   PaymentStatus = "partial"
	PaymentCompleted PaymentStatus = "completed"
)

// DerivePaymentStatus classifies the balance after payments. An overpaid
// order carries a negative due amount and reads as pending.
func DerivePaymentStatus(total, due decimal.Decimal) PaymentStatus {
	switch {
	case due.IsZero():
		return PaymentCompleted
	case due.IsPositive() && due.LessThan(total):
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// Order represents a purchase order placed by a medical store.
type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"orderNumber"`
	PharmaID          int64           `json:"pharmaId"`
	StoreID           int64           `json:"storeId"`
	PharmaName        string          `json:"pharmaCompany,omitempty"`
	StoreName         string          `json:"storeCompany,omitempty"`
	Status            Status          `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	DueAmount         decimal.Decimal `json:"dueAmount"`
	StockCommitted    bool            `json:"-"`
	StaffName         *string         `json:"staffName,omitempty"`
	StaffContact      *string         `json:"staffContact,omitempty"`
	TrackingNumber    *string         `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
	ActualDelivery    *time.Time      `json:"actualDelivery,omitempty"`
	Notes             string          `json:"notes"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Items             []Item          `json:"items,omitempty"`
	Payments          []Payment       `json:"payments,omitempty"`
}

// Item is a line on an order. UnitPrice is snapshotted from the product at
// creation time and never changes afterwards.
type Item struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	IsPaid    bool            `json:"isPaid"`
}

// Payment is one settlement recorded against an order.
type Payment struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paidAt"`
}
