package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/utafrali/cart-service/internal/domain"
)

// HTTPDoer executes an HTTP request. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CatalogClient resolves prices from the product catalog service over HTTP.
type CatalogClient struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewCatalogClient creates a CatalogClient against baseURL.
func NewCatalogClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *CatalogClient {
	return &CatalogClient{
		http:    httpClient,
		baseURL: baseURL,
		logger:  logger,
	}
}

// productResponse mirrors the catalog service's response envelope.
type productResponse struct {
	Data struct {
		ID    string       `json:"id"`
		Name  string       `json:"name"`
		Price domain.Money `json:"price"`
	} `json:"data"`
}

// ResolvePrice fetches the product's current unit price. A 404 maps to
// domain.ErrProductNotFound; everything else propagates for the caller to
// classify.
func (c *CatalogClient) ResolvePrice(ctx context.Context, productID string) (domain.Money, error) {
	endpoint := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.MoneyZero(), fmt.Errorf("create catalog request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return domain.MoneyZero(), fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.MoneyZero(), fmt.Errorf("product %s: %w", productID, domain.ErrProductNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return domain.MoneyZero(), fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, body)
	}

	var pr productResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.MoneyZero(), fmt.Errorf("decode catalog response: %w", err)
	}

	c.logger.DebugContext(ctx, "price resolved",
		slog.String("product_id", productID),
		slog.String("price", pr.Data.Price.String()),
	)

	return pr.Data.Price, nil
}
