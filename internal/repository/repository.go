package repository

import (
	"context"

	"github.com/utafrali/cart-service/internal/domain"
)

// CartStore is the durable per-owner cart storage contract.
type CartStore interface {
	// Get retrieves the cart for an owner. Returns an error wrapping
	// errors.ErrNotFound when no cart has been materialized.
	Get(ctx context.Context, ownerID string) (*domain.Cart, error)

	// LoadOrCreate retrieves the owner's cart, materializing an empty one
	// as a single atomic step when none exists. Two concurrent calls for
	// the same owner observe the same cart, never two.
	LoadOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error)

	// SaveIfVersion persists the cart only if the stored version still
	// equals expectedVersion, incrementing it atomically on success.
	// Returns false (and no error) when another writer got there first.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)
}
