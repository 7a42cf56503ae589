package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/cart-service/internal/domain"
	"github.com/utafrali/cart-service/internal/pricing"
	redisrepo "github.com/utafrali/cart-service/internal/repository/redis"
)

type fixedPriceOracle struct {
	prices map[string]domain.Money
}

func (o *fixedPriceOracle) ResolvePrice(_ context.Context, productID string) (domain.Money, error) {
	price, ok := o.prices[productID]
	if !ok {
		return domain.MoneyZero(), domain.ErrProductNotFound
	}
	return price, nil
}

var _ pricing.Oracle = (*fixedPriceOracle)(nil)

func newRedisBackedService(t *testing.T, prices map[string]string) (*CartService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	oracle := &fixedPriceOracle{prices: map[string]domain.Money{}}
	for id, s := range prices {
		m, err := domain.ParseMoney(s)
		require.NoError(t, err)
		oracle.prices[id] = m
	}

	store := redisrepo.NewCartStore(client, 24*time.Hour)
	return NewCartService(store, oracle, nil, testLogger()), mr
}

// Concurrent adds for the same owner must all land. The store's
// compare-and-swap plus the service retry loop may reorder them, but
// none may be lost.
func TestAddItem_ConcurrentAddsNotLost(t *testing.T) {
	svc, _ := newRedisBackedService(t, map[string]string{"sku-100": "10.00"})
	svc = svc.WithSaveAttempts(50)
	ctx := context.Background()

	const workers = 10
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := svc.AddItem(gctx, "owner-1", "sku-100", 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	snap, err := svc.GetCart(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, workers, snap.Items[0].Quantity)
	assert.Equal(t, "100.00", snap.Total.String())
}

// Operations on different owners never interfere with each other.
func TestAddItem_OwnersIsolated(t *testing.T) {
	svc, _ := newRedisBackedService(t, map[string]string{"sku-100": "10.00", "sku-200": "3.50"})
	ctx := context.Background()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := svc.AddItem(gctx, "owner-a", "sku-100", 2)
		return err
	})
	g.Go(func() error {
		_, err := svc.AddItem(gctx, "owner-b", "sku-200", 4)
		return err
	})
	require.NoError(t, g.Wait())

	a, err := svc.GetCart(ctx, "owner-a")
	require.NoError(t, err)
	b, err := svc.GetCart(ctx, "owner-b")
	require.NoError(t, err)

	assert.Equal(t, "20.00", a.Total.String())
	assert.Equal(t, "14.00", b.Total.String())
	require.Len(t, a.Items, 1)
	assert.Equal(t, "sku-100", a.Items[0].ProductID)
}

// Full lifecycle against the real store: add, merge, remove, and the
// error after removing an item that is already gone.
func TestCartLifecycle(t *testing.T) {
	svc, _ := newRedisBackedService(t, map[string]string{"sku-100": "10.00"})
	ctx := context.Background()

	snap, err := svc.AddItem(ctx, "owner-1", "sku-100", 2)
	require.NoError(t, err)
	assert.Equal(t, "20.00", snap.Total.String())

	snap, err = svc.AddItem(ctx, "owner-1", "sku-100", 1)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "30.00", snap.Total.String())

	snap, err = svc.RemoveItem(ctx, "owner-1", "sku-100")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())

	_, err = svc.RemoveItem(ctx, "owner-1", "sku-100")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestClearCart_Persisted(t *testing.T) {
	svc, _ := newRedisBackedService(t, map[string]string{"sku-100": "10.00"})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "owner-1", "sku-100", 5)
	require.NoError(t, err)

	require.NoError(t, svc.ClearCart(ctx, "owner-1"))

	// Clearing an already-empty cart succeeds again; the row persists at
	// the bumped version.
	require.NoError(t, svc.ClearCart(ctx, "owner-1"))

	snap, err := svc.GetCart(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
}

// Losing the cart payload while its version counter survives (eviction,
// manual delete) must not leave the owner unable to write: a lone writer
// getting Conflict without any concurrent writer would violate the
// conflict contract.
func TestAddItem_AfterPayloadEviction(t *testing.T) {
	svc, mr := newRedisBackedService(t, map[string]string{"sku-100": "10.00"})
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "owner-1", "sku-100", 1)
	require.NoError(t, err)

	// Drop only the payload; cart:owner-1:v stays at 1.
	mr.Del("cart:owner-1")

	snap, err := svc.AddItem(ctx, "owner-1", "sku-100", 2)
	require.NoError(t, err, "a lone writer must not be starved into a conflict")
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "20.00", snap.Total.String())
}
