package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/utafrali/cart-service/pkg/errors"

	"github.com/utafrali/cart-service/internal/domain"
)

func setupStore(t *testing.T) (*CartStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartStore(client, 24*time.Hour), mr
}

func cartWithItem(t *testing.T, ownerID string) *domain.Cart {
	t.Helper()
	cart := domain.NewCart(ownerID)
	price, err := domain.ParseMoney("19.90")
	require.NoError(t, err)
	require.NoError(t, cart.UpsertItem("sku-1", 2, price))
	return cart
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet_NotFound(t *testing.T) {
	store, _ := setupStore(t)

	_, err := store.Get(context.Background(), "owner-none")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGet_RoundTrip(t *testing.T) {
	store, mr := setupStore(t)
	cart := cartWithItem(t, "owner-1")

	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:owner-1", string(data)))

	got, err := store.Get(context.Background(), "owner-1")

	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, "owner-1", got.OwnerID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "sku-1", got.Items[0].ProductID)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.Equal(t, "19.90", got.Items[0].UnitPrice.String())
	assert.Equal(t, "39.80", got.Total.String())
}

// ---------------------------------------------------------------------------
// LoadOrCreate
// ---------------------------------------------------------------------------

func TestLoadOrCreate_Materializes(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cart, err := store.LoadOrCreate(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.Version)

	// A later plain Get sees the materialized cart.
	got, err := store.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
}

func TestLoadOrCreate_ReturnsExisting(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	first, err := store.LoadOrCreate(ctx, "owner-1")
	require.NoError(t, err)

	second, err := store.LoadOrCreate(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestLoadOrCreate_ConcurrentSingleCart(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	const n = 20
	ids := make([]string, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			cart, err := store.LoadOrCreate(gctx, "owner-race")
			if err != nil {
				return err
			}
			ids[i] = cart.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "all callers must observe the same cart")
	}
}

func TestLoadOrCreate_SurvivingVersionKey(t *testing.T) {
	store, mr := setupStore(t)
	ctx := context.Background()

	cart := cartWithItem(t, "owner-1")
	ok, err := store.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	require.True(t, ok)

	// Evict only the payload; the version counter stays behind.
	mr.Del("cart:owner-1")

	fresh, err := store.LoadOrCreate(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, fresh.Items)
	assert.Equal(t, 1, fresh.Version, "fresh cart must adopt the surviving version counter")

	// The adopted version keeps the CAS live.
	ok, err = store.SaveIfVersion(ctx, fresh, fresh.Version)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, fresh.Version)
}

// ---------------------------------------------------------------------------
// SaveIfVersion
// ---------------------------------------------------------------------------

func TestSaveIfVersion_FreshCart(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cart := cartWithItem(t, "owner-1")

	ok, err := store.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, cart.Version)

	got, err := store.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	require.Len(t, got.Items, 1)
}

func TestSaveIfVersion_Increments(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cart := cartWithItem(t, "owner-1")
	ok, err := store.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SaveIfVersion(ctx, cart, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, cart.Version)
}

func TestSaveIfVersion_Mismatch(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	cart := cartWithItem(t, "owner-1")
	ok, err := store.SaveIfVersion(ctx, cart, 0)
	require.NoError(t, err)
	require.True(t, ok)

	stale := cartWithItem(t, "owner-1")
	ok, err = store.SaveIfVersion(ctx, stale, 0)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected version must be rejected")
	assert.Equal(t, 0, stale.Version, "rejected save must not bump the caller's version")

	// The stored state is untouched by the rejected write.
	got, err := store.Get(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
}

func TestSaveIfVersion_LostUpdatePrevented(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	// Both writers load version 0; only one CAS may win.
	a := cartWithItem(t, "owner-1")
	b := cartWithItem(t, "owner-1")

	okA, err := store.SaveIfVersion(ctx, a, 0)
	require.NoError(t, err)
	okB, err := store.SaveIfVersion(ctx, b, 0)
	require.NoError(t, err)

	assert.True(t, okA)
	assert.False(t, okB)
}
