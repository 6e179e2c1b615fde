// Package shopify is the client for the commerce platform Admin REST API.
// It owns pagination, timeouts and retries; callers get plain record slices.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/petits-plats/api/internal/config"
)

const pageLimit = 250

// ErrUnavailable is returned when the source did not produce a success
// response after all retries. Callers degrade to an empty result set.
var ErrUnavailable = errors.New("commerce source unavailable")

// Order is one raw order as returned by the API.
type Order struct {
	OrderNumber int64      `json:"order_number"`
	CreatedAt   string     `json:"created_at"`
	SourceName  string     `json:"source_name"`
	Note        string     `json:"note"`
	Customer    *Customer  `json:"customer"`
	LineItems   []LineItem `json:"line_items"`
}

// Customer is the nested customer reference on an order.
type Customer struct {
	ID int64 `json:"id"`
}

// LineItem is one product line within an order. Price comes over the wire as
// a decimal string.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

// Product is one entry of the product catalog, reduced to the fields the
// price list needs.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Variants []Variant `json:"variants"`
}

// Variant carries the price; the price list uses the first variant only.
type Variant struct {
	Price string `json:"price"`
}

// Client talks to one shop. All calls block until done or the context/timeout
// fires; transient failures are retried with doubling backoff.
type Client struct {
	httpClient *http.Client
	domain     string
	token      string
	version    string
	retries    int

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client from the application config.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		domain:     cfg.ShopifyDomain,
		token:      cfg.ShopifyToken,
		version:    cfg.ShopifyAPIVersion,
		retries:    cfg.FetchRetries,
		sleep:      sleepContext,
	}
}

// sleepContext waits out a backoff but returns early when the request is
// cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Orders fetches all orders, following Link-header pagination until the last
// page. status=any matches the back-office view: open, closed and cancelled
// orders are all candidates for the weekly window.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	url := fmt.Sprintf("https://%s/admin/api/%s/orders.json?status=any&limit=%d", c.domain, c.version, pageLimit)

	var all []Order
	for url != "" {
		var page struct {
			Orders []Order `json:"orders"`
		}
		next, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Orders...)
		url = next
	}
	return all, nil
}

// Products fetches the price list: collects give the product ids belonging to
// collections, then the products endpoint resolves titles and variant prices.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	collectsURL := fmt.Sprintf("https://%s/admin/api/%s/collects.json?limit=%d", c.domain, c.version, pageLimit)

	var ids []string
	seen := make(map[int64]bool)
	for url := collectsURL; url != ""; {
		var page struct {
			Collects []struct {
				ProductID int64 `json:"product_id"`
			} `json:"collects"`
		}
		next, err := c.getJSON(ctx, url, &page)
		if err != nil {
			return nil, err
		}
		for _, col := range page.Collects {
			if !seen[col.ProductID] {
				seen[col.ProductID] = true
				ids = append(ids, fmt.Sprintf("%d", col.ProductID))
			}
		}
		url = next
	}

	if len(ids) == 0 {
		return nil, nil
	}

	// The ids go into the query string, so request them in batches to keep
	// the URL under length limits.
	var all []Product
	for start := 0; start < len(ids); start += pageLimit {
		end := start + pageLimit
		if end > len(ids) {
			end = len(ids)
		}
		url := fmt.Sprintf("https://%s/admin/api/%s/products.json?ids=%s&limit=%d",
			c.domain, c.version, strings.Join(ids[start:end], ","), pageLimit)
		for url != "" {
			var page struct {
				Products []Product `json:"products"`
			}
			next, err := c.getJSON(ctx, url, &page)
			if err != nil {
				return nil, err
			}
			all = append(all, page.Products...)
			url = next
		}
	}
	return all, nil
}

// getJSON performs one GET with retries, decodes the body into out and
// returns the next-page URL from the Link header ("" when on the last page).
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) (string, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}

		next, err := c.doOnce(ctx, url, out)
		if err == nil {
			return next, nil
		}
		if !isRetryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// retryableError marks transient failures (network errors, 5xx, 429).
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func (c *Client) doOnce(ctx context.Context, url string, out interface{}) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &retryableError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return "", &retryableError{fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return nextPageURL(resp.Header.Get("Link")), nil
}

// linkNextPattern matches the rel="next" entry of a Shopify Link header, e.g.
// <https://shop.myshopify.com/admin/api/2025-01/orders.json?page_info=abc>; rel="next"
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

func nextPageURL(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	for _, part := range strings.Split(linkHeader, ",") {
		if m := linkNextPattern.FindStringSubmatch(strings.TrimSpace(part)); m != nil {
			return m[1]
		}
	}
	return ""
}
