package commerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/trafficlens/backend/internal/domain/commerce"
)

func testConnection(t *testing.T, baseURL string) *domain.StoreConnection {
	t.Helper()
	conn, err := domain.NewStoreConnection(uuid.New(), "test store", baseURL, "ck_test", "cs_test")
	require.NoError(t, err)
	return conn
}

func testPullRequest() *domain.OrderPullRequest {
	return &domain.OrderPullRequest{
		After:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Before:   time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		Page:     1,
		PageSize: 2,
	}
}

// ---------------------------------------------------------------------------
// Order Pulling Tests
// ---------------------------------------------------------------------------

func TestWooCommerceAdapter_PullOrders(t *testing.T) {
	t.Run("successful pull", func(t *testing.T) {
		var gotQuery map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
			q := r.URL.Query()
			gotQuery = map[string]string{
				"after":           q.Get("after"),
				"before":          q.Get("before"),
				"status":          q.Get("status"),
				"page":            q.Get("page"),
				"per_page":        q.Get("per_page"),
				"orderby":         q.Get("orderby"),
				"order":           q.Get("order"),
				"consumer_key":    q.Get("consumer_key"),
				"consumer_secret": q.Get("consumer_secret"),
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[
				{
					"id": 1001,
					"number": "1001",
					"status": "completed",
					"currency": "USD",
					"date_created_gmt": "2025-06-02T10:30:00Z",
					"date_modified_gmt": "2025-06-02T11:00:00Z",
					"total": "120.00",
					"total_tax": "10.00",
					"shipping_total": "5.00",
					"discount_total": "0.00",
					"customer_note": "utm_source=google",
					"billing": {"first_name": "Ada", "last_name": "Lovelace", "email": "Ada@Example.com", "country": "GB"},
					"shipping": {"first_name": "Ada", "last_name": "Lovelace", "country": "GB"},
					"line_items": [
						{"id": 11, "product_id": 501, "sku": "SKU-1", "name": "Widget", "quantity": 2, "price": 52.5, "subtotal": "105.00", "total": "105.00", "total_tax": "10.00"}
					],
					"fee_lines": [{"name": "handling", "total": "2.50"}],
					"meta_data": [
						{"key": "_wc_order_attribution_utm_source", "value": "google"},
						{"key": "_wc_order_attribution_source_type", "value": "utm"},
						{"key": "_structured", "value": {"nested": true}}
					]
				}
			]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		conn := testConnection(t, server.URL)

		resp, err := adapter.PullOrders(context.Background(), conn, testPullRequest())
		require.NoError(t, err)
		require.Len(t, resp.Orders, 1)
		assert.False(t, resp.HasMore) // page size 2, got 1

		assert.Equal(t, "2025-06-01T00:00:00Z", gotQuery["after"])
		assert.Equal(t, "2025-06-08T00:00:00Z", gotQuery["before"])
		assert.Equal(t, "any", gotQuery["status"])
		assert.Equal(t, "1", gotQuery["page"])
		assert.Equal(t, "2", gotQuery["per_page"])
		assert.Equal(t, "date", gotQuery["orderby"])
		assert.Equal(t, "asc", gotQuery["order"])
		assert.Equal(t, "ck_test", gotQuery["consumer_key"])
		assert.Equal(t, "cs_test", gotQuery["consumer_secret"])

		order := resp.Orders[0]
		assert.Equal(t, "1001", order.ExternalID)
		assert.Equal(t, "completed", order.Status)
		assert.Equal(t, "USD", order.Currency)
		assert.Equal(t, "120", order.Total.String())
		assert.Equal(t, "10", order.TaxTotal.String())
		assert.Equal(t, "5", order.ShippingTotal.String())
		assert.Equal(t, "105", order.Subtotal.String())
		assert.Equal(t, "2.5", order.FeeTotal.String())
		assert.Equal(t, "utm_source=google", order.CustomerNote)
		assert.Equal(t, "Ada@Example.com", order.Billing.Email)
		assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC), order.DateCreated)

		require.Len(t, order.Items, 1)
		assert.Equal(t, "11", order.Items[0].ExternalID)
		assert.Equal(t, "501", order.Items[0].ProductID)
		assert.Equal(t, 2, order.Items[0].Quantity)
		assert.Equal(t, "52.5", order.Items[0].UnitPrice.String())

		require.Len(t, order.Meta, 3)
		assert.Equal(t, "_wc_order_attribution_utm_source", order.Meta[0].Key)
		assert.Equal(t, "google", order.Meta[0].Value)
		assert.Equal(t, "utm", order.Meta[1].Value)
		// Non-string metadata values keep their JSON encoding
		assert.JSONEq(t, `{"nested": true}`, order.Meta[2].Value)

		// Raw payload is preserved verbatim per order
		assert.Contains(t, order.RawPayload, `"_wc_order_attribution_utm_source"`)
	})

	t.Run("timestamps without zone suffix", func(t *testing.T) {
		// WooCommerce core serializes GMT fields without a trailing Z
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id": 2001, "status": "completed", "date_created_gmt": "2025-06-02T10:30:00", "date_modified_gmt": "2025-06-02T11:00:00"}]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		resp, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		require.NoError(t, err)
		require.Len(t, resp.Orders, 1)

		order := resp.Orders[0]
		assert.Empty(t, order.MappingError)
		assert.Equal(t, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC), order.DateCreated)
		assert.Equal(t, time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC), order.DateModified)
	})

	t.Run("unparseable order date flagged per record", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[
				{"id": 3001, "status": "completed", "date_created_gmt": "02/06/2025 10:30"},
				{"id": 3002, "status": "completed", "date_created_gmt": "2025-06-02T12:00:00"}
			]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		resp, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		require.NoError(t, err)
		require.Len(t, resp.Orders, 2)

		bad := resp.Orders[0]
		assert.Equal(t, "3001", bad.ExternalID)
		assert.Contains(t, bad.MappingError, "date_created_gmt")
		assert.True(t, bad.DateCreated.IsZero())

		good := resp.Orders[1]
		assert.Empty(t, good.MappingError)
		assert.False(t, good.DateCreated.IsZero())
	})

	t.Run("full page sets HasMore", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		resp, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		require.NoError(t, err)
		assert.Len(t, resp.Orders, 2)
		assert.True(t, resp.HasMore)
	})

	t.Run("empty page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		resp, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		require.NoError(t, err)
		assert.Empty(t, resp.Orders)
		assert.False(t, resp.HasMore)
	})

	t.Run("auth failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"woocommerce_rest_cannot_view"}`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		_, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		assert.ErrorIs(t, err, domain.ErrPlatformAuthFailed)
	})

	t.Run("rate limited", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		_, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		assert.ErrorIs(t, err, domain.ErrPlatformRateLimited)
	})

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		_, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		assert.ErrorIs(t, err, domain.ErrPlatformRequestFailed)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("invalid response body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not": "an array"}`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		_, err := adapter.PullOrders(context.Background(), testConnection(t, server.URL), testPullRequest())
		assert.ErrorIs(t, err, domain.ErrPlatformInvalidResponse)
	})

	t.Run("store unreachable", func(t *testing.T) {
		adapter := NewWooCommerceAdapter()
		conn := testConnection(t, "http://127.0.0.1:1")
		conn.TimeoutSeconds = 1

		_, err := adapter.PullOrders(context.Background(), conn, testPullRequest())
		assert.ErrorIs(t, err, domain.ErrPlatformUnavailable)
	})

	t.Run("disabled connection", func(t *testing.T) {
		adapter := NewWooCommerceAdapter()
		conn := testConnection(t, "http://example.com")
		conn.IsEnabled = false

		_, err := adapter.PullOrders(context.Background(), conn, testPullRequest())
		assert.ErrorIs(t, err, domain.ErrConnectionDisabled)
	})

	t.Run("invalid window", func(t *testing.T) {
		adapter := NewWooCommerceAdapter()
		req := testPullRequest()
		req.After, req.Before = req.Before, req.After

		_, err := adapter.PullOrders(context.Background(), testConnection(t, "http://example.com"), req)
		assert.Error(t, err)
	})
}

func TestWooCommerceAdapter_Ping(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("per_page"))
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		assert.NoError(t, adapter.Ping(context.Background(), testConnection(t, server.URL)))
	})

	t.Run("bad credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		adapter := NewWooCommerceAdapter()
		err := adapter.Ping(context.Background(), testConnection(t, server.URL))
		assert.ErrorIs(t, err, domain.ErrPlatformAuthFailed)
	})
}

func TestParseDecimal(t *testing.T) {
	assert.True(t, ParseDecimal("").IsZero())
	assert.True(t, ParseDecimal("garbage").IsZero())
	assert.Equal(t, "19.99", ParseDecimal("19.99").String())
}
