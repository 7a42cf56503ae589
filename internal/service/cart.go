package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/utafrali/cart-service/pkg/errors"

	"github.com/utafrali/cart-service/internal/domain"
	"github.com/utafrali/cart-service/internal/pricing"
	"github.com/utafrali/cart-service/internal/repository"
)

// Cart operation upper-bound limits to prevent abuse.
const (
	// MaxQuantityPerItem is the maximum quantity allowed on a single line.
	MaxQuantityPerItem = 100
	// MaxItemsPerCart is the maximum number of distinct lines in a cart.
	MaxItemsPerCart = 50
)

// DefaultSaveAttempts bounds the optimistic-concurrency retry loop. Under
// contention each failed compare-and-swap reloads the cart and replays the
// mutation; once the budget is spent the operation surfaces a conflict.
const DefaultSaveAttempts = 3

// DefaultPriceTimeout bounds a single price-oracle lookup.
const DefaultPriceTimeout = 2 * time.Second

// EventPublisher publishes cart domain events. A nil publisher disables
// events entirely.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, ownerID string) error
}

// CartService implements the cart's read-modify-write operations against
// the store and the price oracle.
//
// Concurrency: every mutation is load -> mutate -> compare-and-swap on the
// stored version, retried a bounded number of times. Writers for the same
// owner serialize through the CAS; writers for different owners never
// contend. The price lookup happens before the load-mutate-save sequence,
// so a slow catalog never stretches the window between load and save; the
// price may be marginally stale by save time, which the refresh-on-every-add
// policy already tolerates.
type CartService struct {
	store        repository.CartStore
	oracle       pricing.Oracle
	events       EventPublisher
	logger       *slog.Logger
	priceTimeout time.Duration
	saveAttempts int
}

// NewCartService creates a cart service. events may be nil.
func NewCartService(store repository.CartStore, oracle pricing.Oracle, events EventPublisher, logger *slog.Logger) *CartService {
	return &CartService{
		store:        store,
		oracle:       oracle,
		events:       events,
		logger:       logger,
		priceTimeout: DefaultPriceTimeout,
		saveAttempts: DefaultSaveAttempts,
	}
}

// WithPriceTimeout overrides the per-lookup oracle deadline.
func (s *CartService) WithPriceTimeout(d time.Duration) *CartService {
	if d > 0 {
		s.priceTimeout = d
	}
	return s
}

// WithSaveAttempts overrides the CAS retry budget.
func (s *CartService) WithSaveAttempts(n int) *CartService {
	if n > 0 {
		s.saveAttempts = n
	}
	return s
}

// --- Error constructors: the closed taxonomy surfaced to callers ---

func errInvalidQuantity(quantity int) error {
	return apperrors.New("INVALID_QUANTITY",
		fmt.Sprintf("quantity must be at least 1, got %d", quantity),
		http.StatusBadRequest, domain.ErrInvalidQuantity)
}

func errProductNotFound(productID string) error {
	return apperrors.New("PRODUCT_NOT_FOUND",
		fmt.Sprintf("product %s not found in catalog", productID),
		http.StatusNotFound, domain.ErrProductNotFound)
}

func errItemNotFound(productID string) error {
	return apperrors.New("ITEM_NOT_FOUND",
		fmt.Sprintf("product %s is not in the cart", productID),
		http.StatusNotFound, domain.ErrItemNotFound)
}

func errCartNotFound(ownerID string) error {
	return apperrors.New("CART_NOT_FOUND",
		fmt.Sprintf("no cart exists for owner %s", ownerID),
		http.StatusNotFound, domain.ErrCartNotFound)
}

func errStoreUnavailable(err error) error {
	return apperrors.New("STORE_UNAVAILABLE",
		"cart store temporarily unavailable",
		http.StatusServiceUnavailable, errors.Join(apperrors.ErrUnavailable, err))
}

// GetCart returns the owner's cart, materializing an empty one on first
// read. The price oracle is never consulted.
func (s *CartService) GetCart(ctx context.Context, ownerID string) (domain.Snapshot, error) {
	if ownerID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("owner id is required")
	}

	cart, err := s.store.LoadOrCreate(ctx, ownerID)
	if err != nil {
		return domain.Snapshot{}, errStoreUnavailable(err)
	}
	return cart.Snapshot(), nil
}

// AddItem adds quantity units of a product to the owner's cart, merging
// into an existing line and refreshing its price snapshot. The unit price
// is resolved from the oracle exactly once, before the save loop.
func (s *CartService) AddItem(ctx context.Context, ownerID, productID string, quantity int) (domain.Snapshot, error) {
	if ownerID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("owner id is required")
	}
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	}
	if quantity < 1 {
		return domain.Snapshot{}, errInvalidQuantity(quantity)
	}
	if quantity > MaxQuantityPerItem {
		return domain.Snapshot{}, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", MaxQuantityPerItem))
	}

	price, err := s.resolvePrice(ctx, productID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	for attempt := 0; attempt < s.saveAttempts; attempt++ {
		cart, err := s.store.LoadOrCreate(ctx, ownerID)
		if err != nil {
			return domain.Snapshot{}, errStoreUnavailable(err)
		}

		if i := cart.FindIndex(productID); i >= 0 {
			if cart.Items[i].Quantity+quantity > MaxQuantityPerItem {
				return domain.Snapshot{}, apperrors.InvalidInput(
					fmt.Sprintf("combined quantity must not exceed %d", MaxQuantityPerItem))
			}
		} else if len(cart.Items) >= MaxItemsPerCart {
			return domain.Snapshot{}, apperrors.InvalidInput(
				fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}

		if err := cart.UpsertItem(productID, quantity, price); err != nil {
			return domain.Snapshot{}, errInvalidQuantity(quantity)
		}

		ok, err := s.store.SaveIfVersion(ctx, cart, cart.Version)
		if err != nil {
			return domain.Snapshot{}, errStoreUnavailable(err)
		}
		if !ok {
			continue
		}

		s.publishUpdated(ctx, cart)
		s.logger.InfoContext(ctx, "item added to cart",
			slog.String("owner_id", ownerID),
			slog.String("product_id", productID),
			slog.Int("quantity", quantity),
			slog.String("unit_price", price.String()),
		)
		return cart.Snapshot(), nil
	}

	return domain.Snapshot{}, apperrors.Conflict("cart was modified concurrently, please retry")
}

// RemoveItem deletes a product line from the owner's cart. Unlike add, the
// owner must already have a materialized cart.
func (s *CartService) RemoveItem(ctx context.Context, ownerID, productID string) (domain.Snapshot, error) {
	if ownerID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("owner id is required")
	}
	if productID == "" {
		return domain.Snapshot{}, apperrors.InvalidInput("product id is required")
	}

	for attempt := 0; attempt < s.saveAttempts; attempt++ {
		cart, err := s.loadExisting(ctx, ownerID)
		if err != nil {
			return domain.Snapshot{}, err
		}

		if err := cart.RemoveItem(productID); err != nil {
			return domain.Snapshot{}, errItemNotFound(productID)
		}

		ok, err := s.store.SaveIfVersion(ctx, cart, cart.Version)
		if err != nil {
			return domain.Snapshot{}, errStoreUnavailable(err)
		}
		if !ok {
			continue
		}

		s.publishUpdated(ctx, cart)
		s.logger.InfoContext(ctx, "item removed from cart",
			slog.String("owner_id", ownerID),
			slog.String("product_id", productID),
		)
		return cart.Snapshot(), nil
	}

	return domain.Snapshot{}, apperrors.Conflict("cart was modified concurrently, please retry")
}

// ClearCart empties the owner's cart. The cart row persists with a zero
// total; clearing twice in a row succeeds both times.
func (s *CartService) ClearCart(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return apperrors.InvalidInput("owner id is required")
	}

	for attempt := 0; attempt < s.saveAttempts; attempt++ {
		cart, err := s.loadExisting(ctx, ownerID)
		if err != nil {
			return err
		}

		cart.Clear()

		ok, err := s.store.SaveIfVersion(ctx, cart, cart.Version)
		if err != nil {
			return errStoreUnavailable(err)
		}
		if !ok {
			continue
		}

		if s.events != nil {
			if err := s.events.PublishCartCleared(ctx, ownerID); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
					slog.String("owner_id", ownerID),
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.InfoContext(ctx, "cart cleared", slog.String("owner_id", ownerID))
		return nil
	}

	return apperrors.Conflict("cart was modified concurrently, please retry")
}

// loadExisting fetches a cart that must already exist, mapping a missing
// row to CART_NOT_FOUND and any other store failure to STORE_UNAVAILABLE.
func (s *CartService) loadExisting(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.store.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errCartNotFound(ownerID)
		}
		return nil, errStoreUnavailable(err)
	}
	return cart, nil
}

// resolvePrice asks the oracle for the product's unit price under the
// configured deadline and classifies failures into the error taxonomy.
// No cart state has been touched yet when this fails.
func (s *CartService) resolvePrice(ctx context.Context, productID string) (domain.Money, error) {
	pctx, cancel := context.WithTimeout(ctx, s.priceTimeout)
	defer cancel()

	price, err := s.oracle.ResolvePrice(pctx, productID)
	if err == nil {
		return price, nil
	}

	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return domain.MoneyZero(), errProductNotFound(productID)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.MoneyZero(), apperrors.GatewayTimeout(
			fmt.Sprintf("price lookup for product %s timed out", productID))
	default:
		s.logger.ErrorContext(ctx, "price lookup failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return domain.MoneyZero(), apperrors.Unavailable("price lookup failed, please retry")
	}
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("owner_id", cart.OwnerID),
			slog.String("error", err.Error()),
		)
	}
}
