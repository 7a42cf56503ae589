package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/cart-service/pkg/errors"

	"github.com/utafrali/cart-service/internal/domain"
)

const keyPrefix = "cart:"

// saveIfVersionScript performs the compare-and-swap: the write goes through
// only when the version key still holds the expected value (a missing key
// counts as version 0). KEYS[1] is the cart payload key, KEYS[2] the
// version key; ARGV[1] expected version, ARGV[2] payload, ARGV[3] TTL in
// milliseconds.
var saveIfVersionScript = redis.NewScript(`
local want = tonumber(ARGV[1])
local have = tonumber(redis.call("GET", KEYS[2]) or "0")
if have ~= want then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
redis.call("SET", KEYS[2], have + 1, "PX", ARGV[3])
return 1
`)

// CartStore implements repository.CartStore on Redis. The cart is stored as
// a JSON blob under cart:<owner>, with the optimistic-concurrency version
// in a sibling cart:<owner>:v key so the CAS script needs no JSON parsing.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore creates a Redis-backed cart store. Carts expire after ttl of
// inactivity; every successful save renews the clock.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{client: client, ttl: ttl}
}

func dataKey(ownerID string) string    { return keyPrefix + ownerID }
func versionKey(ownerID string) string { return keyPrefix + ownerID + ":v" }

// Get retrieves the cart for an owner.
func (s *CartStore) Get(ctx context.Context, ownerID string) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, dataKey(ownerID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("cart", ownerID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// LoadOrCreate retrieves the owner's cart, creating an empty one with
// SET NX when absent. The NX write is the single atomic step: if another
// request materializes the cart first, that cart is read back instead.
func (s *CartStore) LoadOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	cart, err := s.Get(ctx, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	fresh := domain.NewCart(ownerID)

	// The payload and version keys expire together, but the payload can
	// still be lost alone (eviction, manual delete). A fresh cart must
	// pick up the surviving counter or every CAS for this owner would be
	// rejected until the version key expires.
	ver, err := s.client.Get(ctx, versionKey(ownerID)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis get cart version: %w", err)
	}
	fresh.Version = ver

	payload, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}

	created, err := s.client.SetNX(ctx, dataKey(ownerID), payload, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx cart: %w", err)
	}
	if created {
		return fresh, nil
	}

	// Lost the creation race; the winner's cart is authoritative.
	return s.Get(ctx, ownerID)
}

// SaveIfVersion persists the cart when the stored version still equals
// expectedVersion. On success the cart's Version field reflects the newly
// stored value.
func (s *CartStore) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	next := *cart
	next.Version = expectedVersion + 1

	payload, err := json.Marshal(&next)
	if err != nil {
		return false, fmt.Errorf("marshal cart: %w", err)
	}

	res, err := saveIfVersionScript.Run(ctx, s.client,
		[]string{dataKey(cart.OwnerID), versionKey(cart.OwnerID)},
		expectedVersion, payload, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis save cart: %w", err)
	}
	if res != 1 {
		return false, nil
	}

	cart.Version = next.Version
	return true, nil
}

// Ping reports Redis connectivity, for readiness checks.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
