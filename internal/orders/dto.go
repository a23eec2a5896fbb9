package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest carries the fields accepted when placing an order.
type CreateOrderRequest struct {
	PharmaID int64             `json:"pharmaId" validate:"required"`
	Items    []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	Notes    string            `json:"notes"`
}

// CreateOrderItem is one requested line. Price is never accepted from the
// client; it is snapshotted from the product.
type CreateOrderItem struct {
	ProductID int64 `json:"productId" validate:"required"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1"`
}

// TransitionRequest carries the target lifecycle state.
type TransitionRequest struct {
	Status Status `json:"status" validate:"required"`
}

// PaymentRequest records one settlement against an order.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
}

// DeliveryRequest whitelists the delivery detail fields. Nil pointers leave
// a field untouched.
type DeliveryRequest struct {
	StaffName         *string    `json:"staffName"`
	StaffContact      *string    `json:"staffContact"`
	TrackingNumber    *string    `json:"trackingNumber"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
	Notes             *string    `json:"notes"`
}

// ItemPaymentRequest flips the paid flag on a single item.
type ItemPaymentRequest struct {
	IsPaid bool `json:"isPaid"`
}

// ListFilter narrows List results to one side of the order.
type ListFilter struct {
	PharmaID int64
	StoreID  int64
	Status   Status
}
