package pricing

import (
	"context"

	"github.com/utafrali/cart-service/internal/domain"
)

// Oracle resolves a product identifier to its current unit price. The cart
// service calls it at most once per add operation; retry and circuit
// breaking, if any, live inside the implementation.
type Oracle interface {
	// ResolvePrice returns the product's current unit price, or an error
	// wrapping domain.ErrProductNotFound when the catalog has no such
	// product. A deadline on ctx bounds the lookup.
	ResolvePrice(ctx context.Context, productID string) (domain.Money, error)
}
