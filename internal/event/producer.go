package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/cart-service/pkg/kafka"
	"github.com/utafrali/cart-service/pkg/logger"

	"github.com/utafrali/cart-service/internal/domain"
)

// Kafka topics for cart domain events.
const (
	TopicCartUpdated = "shop.cart.updated"
	TopicCartCleared = "shop.cart.cleared"
)

const (
	aggregateTypeCart = "cart"
	sourceCartService = "cart-service"
)

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	OwnerID   string         `json:"owner_id"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Total     string         `json:"total"`
}

// CartItemData is one line within a cart event payload.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	OwnerID string `json:"owner_id"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a cart event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishCartUpdated publishes the cart's post-mutation state.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
			Subtotal:  item.Subtotal.String(),
		}
	}

	data := CartUpdatedData{
		OwnerID:   cart.OwnerID,
		Items:     items,
		ItemCount: cart.ItemCount(),
		Total:     cart.Total.String(),
	}

	evt, err := pkgkafka.NewEvent(TopicCartUpdated, cart.OwnerID, aggregateTypeCart, sourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, evt); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, ownerID string) error {
	evt, err := pkgkafka.NewEvent(TopicCartCleared, ownerID, aggregateTypeCart, sourceCartService, CartClearedData{OwnerID: ownerID})
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, evt); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}
	return nil
}
