package domain

import "errors"

// Closed set of cart failure modes. The service layer wraps these into
// AppErrors with stable codes; callers match with errors.Is rather than
// inspecting messages.
var (
	// ErrInvalidQuantity is returned when a quantity below 1 is supplied.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrItemNotFound is returned when a removal targets a product that is
	// not present in the cart.
	ErrItemNotFound = errors.New("item not in cart")

	// ErrCartNotFound is returned when remove or clear targets an owner
	// with no materialized cart.
	ErrCartNotFound = errors.New("cart not found")

	// ErrProductNotFound is returned when the price oracle cannot resolve
	// a product.
	ErrProductNotFound = errors.New("product not found")
)
