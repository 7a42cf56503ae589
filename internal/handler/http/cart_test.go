package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/cart-service/internal/domain"
	redisrepo "github.com/utafrali/cart-service/internal/repository/redis"
	"github.com/utafrali/cart-service/internal/service"
)

// --- Test fixture ---

type staticOracle struct {
	prices map[string]string
}

func (o *staticOracle) ResolvePrice(_ context.Context, productID string) (domain.Money, error) {
	s, ok := o.prices[productID]
	if !ok {
		return domain.MoneyZero(), domain.ErrProductNotFound
	}
	return domain.ParseMoney(s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestRouter wires the real service and redis store behind the production
// route layout so auth and content-type behavior are tested end to end.
func newTestRouter(t *testing.T, prices map[string]string) http.Handler {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisrepo.NewCartStore(client, time.Hour)
	svc := service.NewCartService(store, &staticOracle{prices: prices}, nil, testLogger())
	handler := NewCartHandler(svc, testLogger())

	r := chi.NewRouter()
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(OwnerIDFromHeader)

		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)

		r.Post("/items", handler.AddItem)
		r.Delete("/items/{productID}", handler.RemoveItem)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

type snapshotPayload struct {
	OwnerID string `json:"owner_id"`
	Items   []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		UnitPrice string `json:"unit_price"`
		Subtotal  string `json:"subtotal"`
	} `json:"items"`
	Total string `json:"total"`
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) snapshotPayload {
	t.Helper()
	var resp struct {
		Data snapshotPayload `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Data
}

// --- Tests ---

func TestGetCart_EmptyOnFirstRead(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart", "user-123", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Equal(t, "user-123", snap.OwnerID)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "0.00", snap.Total)
}

func TestGetCart_MissingUserHeader(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart", "", nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestAddItem_EndToEnd(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		AddItemRequest{ProductID: "sku-100", Quantity: 2})

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "sku-100", snap.Items[0].ProductID)
	assert.Equal(t, 2, snap.Items[0].Quantity)
	assert.Equal(t, "10.00", snap.Items[0].UnitPrice)
	assert.Equal(t, "20.00", snap.Items[0].Subtotal)
	assert.Equal(t, "20.00", snap.Total)

	// A second add for the same product merges instead of duplicating.
	rec = doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		AddItemRequest{ProductID: "sku-100", Quantity: 1})

	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeSnapshot(t, rec)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, "30.00", snap.Total)
}

func TestAddItem_ValidationError(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		map[string]any{"product_id": "", "quantity": 0})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Fields, "ProductID")
}

func TestAddItem_NegativeQuantity(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		map[string]any{"product_id": "sku-100", "quantity": -3})

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	router := newTestRouter(t, map[string]string{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		AddItemRequest{ProductID: "sku-missing", Quantity: 1})

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PRODUCT_NOT_FOUND", resp.Error.Code)
}

func TestAddItem_UnsupportedMediaType(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items",
		bytes.NewBufferString("product_id=sku-100"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-User-ID", "user-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRemoveItem_EndToEnd(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		AddItemRequest{ProductID: "sku-100", Quantity: 2})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/cart/items/sku-100", "user-123", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "0.00", snap.Total)

	// Removing it again reports the item, not the cart, as missing.
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/cart/items/sku-100", "user-123", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ITEM_NOT_FOUND", resp.Error.Code)
}

func TestRemoveItem_NoCart(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/cart/items/sku-100", "user-nobody", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CART_NOT_FOUND", resp.Error.Code)
}

func TestClearCart_EndToEnd(t *testing.T) {
	router := newTestRouter(t, map[string]string{"sku-100": "10.00"})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-123",
		AddItemRequest{ProductID: "sku-100", Quantity: 5})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/cart", "user-123", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Clearing again is idempotent once the cart exists.
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/cart", "user-123", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/cart", "user-123", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "0.00", snap.Total)
}
