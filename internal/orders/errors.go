package orders

import "errors"

var (
	// ErrInvalidTransition signals a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInsufficientStock signals that a product cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrItemNotFound signals an item id that is not part of the order.
	ErrItemNotFound = errors.New("item not found in order")
)
