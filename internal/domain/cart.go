package domain

import (
	"time"

	"github.com/google/uuid"
)

// LineItem is one product's row in a cart. UnitPrice is a snapshot taken
// from the catalog at the time of the last add; Subtotal is always derived
// as UnitPrice * Quantity and never set independently.
type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unit_price"`
	Subtotal  Money  `json:"subtotal"`
}

// Cart is the per-owner aggregate. Items preserve insertion order and hold
// at most one line per product; Total always equals the sum of the line
// subtotals. Version is the optimistic-concurrency token, bumped by the
// store on every successful save.
type Cart struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Items     []LineItem `json:"items"`
	Total     Money      `json:"total"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewCart creates an empty cart for an owner.
func NewCart(ownerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Items:     []LineItem{},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindIndex returns the position of the line for productID, or -1.
func (c *Cart) FindIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// UpsertItem adds quantity units of a product at unitPrice. If a line for
// the product already exists the quantities merge and the stored unit price
// is overwritten with the supplied one: the latest known catalog price
// always wins, so price drift since a prior add is corrected on the next
// one. Subtotal and Total are recomputed before returning.
func (c *Cart) UpsertItem(productID string, quantity int, unitPrice Money) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	if i := c.FindIndex(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		c.Items[i].UnitPrice = unitPrice
	} else {
		c.Items = append(c.Items, LineItem{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
		})
	}

	c.recompute()
	return nil
}

// RemoveItem deletes the line for productID, preserving the order of the
// remaining lines. Returns ErrItemNotFound when no such line exists.
func (c *Cart) RemoveItem(productID string) error {
	i := c.FindIndex(productID)
	if i < 0 {
		return ErrItemNotFound
	}

	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.recompute()
	return nil
}

// Clear empties the cart. The aggregate itself persists for the owner;
// clearing an already-empty cart is a no-op and never fails.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.recompute()
}

// ItemCount returns the total number of units across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// recompute re-derives every subtotal and the cart total from quantities
// and unit prices, and touches UpdatedAt.
func (c *Cart) recompute() {
	total := MoneyZero()
	for i := range c.Items {
		c.Items[i].Subtotal = c.Items[i].UnitPrice.MulQuantity(c.Items[i].Quantity)
		total = total.Add(c.Items[i].Subtotal)
	}
	c.Total = total
	c.UpdatedAt = time.Now().UTC()
}

// Snapshot is an immutable view of a cart handed to callers. It shares no
// mutable state with the aggregate.
type Snapshot struct {
	OwnerID   string     `json:"owner_id"`
	Items     []LineItem `json:"items"`
	Total     Money      `json:"total"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Snapshot copies the cart's current state.
func (c *Cart) Snapshot() Snapshot {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Snapshot{
		OwnerID:   c.OwnerID,
		Items:     items,
		Total:     c.Total,
		UpdatedAt: c.UpdatedAt,
	}
}
