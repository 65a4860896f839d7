// Package squarespace reads orders from the Squarespace Commerce API.
package squarespace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/orderbot/orderbot-sync/internal/errors"
)

const (
	DefaultBaseURL = "https://api.squarespace.com"
	ordersPath     = "/1.0/commerce/orders"
	userAgent      = "MembershipBot"

	// TimestampLayout carries a single fractional digit, e.g. 2026-01-01T00:00:00.0Z
	TimestampLayout = "2006-01-02T15:04:05.0Z"
)

// Option configures a Client
type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// Client talks to the commerce orders endpoint. It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, apperrors.ErrAPIKeyRequired
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type ListOrdersInput struct {
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
}

// ListOrders returns every order modified inside the window, following nextPageUrl until the last
// page. Later pages are requested exactly as the API returns them.
func (c *Client) ListOrders(ctx context.Context, input ListOrdersInput) ([]Order, error) {
	logger := zerolog.Ctx(ctx)

	query := url.Values{}
	query.Set("modifiedAfter", input.ModifiedAfter.UTC().Format(TimestampLayout))
	query.Set("modifiedBefore", input.ModifiedBefore.UTC().Format(TimestampLayout))
	endpoint := c.baseURL + ordersPath + "?" + query.Encode()

	var orders []Order
	for page := 1; endpoint != ""; page++ {
		result, err := c.getPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		orders = append(orders, result.Result...)
		logger.Debug().
			Int("page", page).
			Int("page_orders", len(result.Result)).
			Int("total_orders", len(orders)).
			Msg("fetched orders page")

		endpoint = ""
		if result.Pagination.HasNextPage {
			endpoint = result.Pagination.NextPageURL
		}
	}

	return orders, nil
}

func (c *Client) getPage(ctx context.Context, endpoint string) (*ordersPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", apperrors.ErrUnexpectedResponse, resp.StatusCode, string(body))
	}

	var page ordersPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode orders response: %w", err)
	}

	return &page, nil
}
