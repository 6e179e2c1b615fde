package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient points a Client at a TLS test server, with sleeps recorded
// instead of slept.
func newTestClient(srv *httptest.Server, retries int, slept *[]time.Duration) *Client {
	return &Client{
		httpClient: srv.Client(),
		domain:     strings.TrimPrefix(srv.URL, "https://"),
		token:      "test-token",
		version:    "2025-01",
		retries:    retries,
		sleep: func(_ context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestOrdersPagination(t *testing.T) {
	var gotToken string
	var srv *httptest.Server
	srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Shopify-Access-Token")
		if r.URL.Query().Get("page_info") == "page2" {
			fmt.Fprint(w, `{"orders":[{"order_number":1002,"line_items":[{"name":"Tajine","quantity":1,"price":"11.00"}]}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/admin/api/2025-01/orders.json?page_info=page2>; rel="next"`, srv.URL))
		fmt.Fprint(w, `{"orders":[{"order_number":1001,"created_at":"2025-04-08T09:30:00+02:00","source_name":"web","customer":{"id":55},"line_items":[{"name":"Couscous","quantity":2,"price":"12.50"}]}]}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	orders, err := c.Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if gotToken != "test-token" {
		t.Errorf("access token header: got %q", gotToken)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2: %+v", len(orders), orders)
	}
	if orders[0].OrderNumber != 1001 || orders[0].Customer == nil || orders[0].Customer.ID != 55 {
		t.Errorf("first order: %+v", orders[0])
	}
	if orders[1].OrderNumber != 1002 {
		t.Errorf("second order: %+v", orders[1])
	}
	if len(slept) != 0 {
		t.Errorf("no retries expected, slept %v", slept)
	}
}

func TestOrdersRetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"orders":[{"order_number":1001,"line_items":[{"name":"Couscous","quantity":1}]}]}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	orders, err := c.Orders(context.Background())
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
	// Backoff doubles from 500ms.
	if len(slept) != 2 || slept[0] != 500*time.Millisecond || slept[1] != time.Second {
		t.Errorf("backoff: got %v", slept)
	}
}

func TestOrdersUnavailableAfterRetries(t *testing.T) {
	var calls int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	_, err := c.Orders(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestOrdersDoesNotRetryAuthFailure(t *testing.T) {
	var calls int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	_, err := c.Orders(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != 1 {
		t.Errorf("client error must not retry, got %d calls", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v", slept)
	}
}

func TestOrdersStopsOnCancelledContext(t *testing.T) {
	var calls int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)
	c.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Orders(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// The backoff must give up immediately instead of waiting it out.
	if calls > 1 {
		t.Errorf("calls after cancellation: got %d, want at most 1", calls)
	}
}

func TestProducts(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "collects"):
			fmt.Fprint(w, `{"collects":[{"product_id":1},{"product_id":2},{"product_id":1}]}`)
		case strings.Contains(r.URL.Path, "products"):
			if ids := r.URL.Query().Get("ids"); ids != "1,2" {
				t.Errorf("ids query: got %q", ids)
			}
			fmt.Fprint(w, `{"products":[{"id":1,"title":"Couscous royal","variants":[{"price":"12.50"}]},{"id":2,"title":"Tajine poulet","variants":[]}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2: %+v", len(products), products)
	}
	if products[0].Title != "Couscous royal" || products[0].Variants[0].Price != "12.50" {
		t.Errorf("first product: %+v", products[0])
	}
}

func TestProductsChunksLargeCatalog(t *testing.T) {
	var idCounts []int
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "collects"):
			var b strings.Builder
			b.WriteString(`{"collects":[`)
			for i := 0; i < 300; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, `{"product_id":%d}`, i+1)
			}
			b.WriteString(`]}`)
			fmt.Fprint(w, b.String())
		case strings.Contains(r.URL.Path, "products"):
			idCounts = append(idCounts, len(strings.Split(r.URL.Query().Get("ids"), ",")))
			fmt.Fprint(w, `{"products":[{"id":1,"title":"Couscous royal","variants":[{"price":"12.50"}]}]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want one per batch", len(products))
	}
	// 300 ids split into a full batch of 250 and a remainder of 50.
	if len(idCounts) != 2 || idCounts[0] != 250 || idCounts[1] != 50 {
		t.Errorf("ids per request: got %v, want [250 50]", idCounts)
	}
}

func TestProductsNoCollects(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"collects":[]}`)
	}))
	defer srv.Close()

	var slept []time.Duration
	c := newTestClient(srv, 3, &slept)

	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("got %+v, want none", products)
	}
}

func TestNextPageURL(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"next only", `<https://shop.example/orders.json?page_info=abc>; rel="next"`, "https://shop.example/orders.json?page_info=abc"},
		{"previous and next", `<https://shop.example/a>; rel="previous", <https://shop.example/b>; rel="next"`, "https://shop.example/b"},
		{"previous only", `<https://shop.example/a>; rel="previous"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextPageURL(tt.header); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
