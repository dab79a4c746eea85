package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/trafficlens/backend/internal/domain/commerce"
)

// maxResponseSize is the maximum allowed response size from the store API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// wireTimeFormat is the UTC timestamp format sent to the store API. The
// trailing Z keeps the window unambiguous regardless of the store's local
// timezone setting.
const wireTimeFormat = "2006-01-02T15:04:05Z"

// wireTimeLayouts lists the timestamp layouts accepted from the store API.
// WooCommerce serializes date_created_gmt without a zone suffix; some
// plugins and proxies append a Z.
var wireTimeLayouts = []string{"2006-01-02T15:04:05", wireTimeFormat}

// parseWireTime parses a GMT timestamp from the store API in any of the
// accepted layouts.
func parseWireTime(value string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ordersPath is the WooCommerce REST v3 orders collection endpoint
const ordersPath = "/wp-json/wc/v3/orders"

// WooCommerceAdapter implements the StorePlatform port against the
// WooCommerce REST API v3. One adapter instance serves all connections;
// per-connection credentials and timeouts come from the StoreConnection.
type WooCommerceAdapter struct {
	httpClient *http.Client
}

// NewWooCommerceAdapter creates an adapter with a shared HTTP client.
// Per-request timeouts are enforced via context deadlines so each
// connection's configured timeout applies.
func NewWooCommerceAdapter() *WooCommerceAdapter {
	return &WooCommerceAdapter{
		httpClient: &http.Client{},
	}
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// PullOrders pulls one page of orders within the request window, ordered by
// creation date ascending. All statuses are requested so cancelled and
// refunded orders are visible to downstream consumers.
func (a *WooCommerceAdapter) PullOrders(ctx context.Context, conn *domain.StoreConnection, req *domain.OrderPullRequest) (*domain.OrderPullResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !conn.IsEnabled {
		return nil, domain.ErrConnectionDisabled
	}

	params := url.Values{}
	params.Set("after", req.After.UTC().Format(wireTimeFormat))
	params.Set("before", req.Before.UTC().Format(wireTimeFormat))
	params.Set("status", "any")
	params.Set("page", strconv.Itoa(req.Page))
	params.Set("per_page", strconv.Itoa(req.PageSize))
	params.Set("orderby", "date")
	params.Set("order", "asc")

	body, err := a.doRequest(ctx, conn, ordersPath, params)
	if err != nil {
		return nil, err
	}

	// Decode into raw messages first so every order keeps its verbatim
	// payload alongside the parsed form.
	var rawOrders []json.RawMessage
	if err := json.Unmarshal(body, &rawOrders); err != nil {
		return nil, fmt.Errorf("%w: expected order array: %v", domain.ErrPlatformInvalidResponse, err)
	}

	response := &domain.OrderPullResponse{
		Orders:  make([]domain.RemoteOrder, 0, len(rawOrders)),
		HasMore: len(rawOrders) == req.PageSize,
	}

	for _, raw := range rawOrders {
		var wo wooOrder
		if err := json.Unmarshal(raw, &wo); err != nil {
			return nil, fmt.Errorf("%w: malformed order object: %v", domain.ErrPlatformInvalidResponse, err)
		}
		response.Orders = append(response.Orders, convertWooOrder(&wo, raw))
	}

	return response, nil
}

// Ping verifies connectivity and credentials by requesting a single order.
func (a *WooCommerceAdapter) Ping(ctx context.Context, conn *domain.StoreConnection) error {
	params := url.Values{}
	params.Set("per_page", "1")

	_, err := a.doRequest(ctx, conn, ordersPath, params)
	return err
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated GET against the store API and returns
// the response body for 2xx responses.
func (a *WooCommerceAdapter) doRequest(ctx context.Context, conn *domain.StoreConnection, path string, params url.Values) ([]byte, error) {
	params.Set("consumer_key", conn.ConsumerKey)
	params.Set("consumer_secret", conn.ConsumerSecret)

	endpoint := conn.BaseURL + path + "?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, conn.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPlatformUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrPlatformAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", domain.ErrPlatformRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrPlatformRequestFailed, resp.StatusCode, truncateBody(body))
	}

	return body, nil
}

// truncateBody shortens an error body for inclusion in error messages
func truncateBody(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// convertWooOrder converts a wire order to the domain representation,
// preserving the verbatim payload.
func convertWooOrder(wo *wooOrder, raw json.RawMessage) domain.RemoteOrder {
	order := domain.RemoteOrder{
		ExternalID:    strconv.FormatInt(wo.ID, 10),
		Number:        wo.Number,
		Status:        wo.Status,
		Currency:      wo.Currency,
		TaxTotal:      ParseDecimal(wo.TotalTax),
		ShippingTotal: ParseDecimal(wo.ShippingTotal),
		DiscountTotal: ParseDecimal(wo.DiscountTotal),
		Total:         ParseDecimal(wo.Total),
		Billing:       convertWooAddress(wo.Billing),
		Shipping:      convertWooAddress(wo.Shipping),
		CustomerNote:  wo.CustomerNote,
		Meta:          make([]domain.RemoteMetaEntry, 0, len(wo.MetaData)),
		Items:         make([]domain.RemoteLineItem, 0, len(wo.LineItems)),
		RawPayload:    string(raw),
	}

	// An order without a usable creation date would fall outside every
	// window. Record the problem on the order instead of dropping it so
	// downstream consumers can count and report the record.
	if t, err := parseWireTime(wo.DateCreated); err == nil {
		order.DateCreated = t
	} else {
		order.MappingError = fmt.Sprintf("date_created_gmt: %v", err)
	}
	if wo.DateModified != "" {
		if t, err := parseWireTime(wo.DateModified); err == nil {
			order.DateModified = t
		} else if order.MappingError == "" {
			order.MappingError = fmt.Sprintf("date_modified_gmt: %v", err)
		}
	}

	for _, m := range wo.MetaData {
		order.Meta = append(order.Meta, domain.RemoteMetaEntry{
			Key:   m.Key,
			Value: m.StringValue(),
		})
	}

	subtotal := decimal.Zero
	for _, li := range wo.LineItems {
		item := domain.RemoteLineItem{
			ExternalID: strconv.FormatInt(li.ID, 10),
			ProductID:  strconv.FormatInt(li.ProductID, 10),
			SKU:        li.SKU,
			Name:       li.Name,
			Quantity:   li.Quantity,
			UnitPrice:  ParseDecimal(li.Price.String()),
			Subtotal:   ParseDecimal(li.Subtotal),
			Total:      ParseDecimal(li.Total),
			TaxTotal:   ParseDecimal(li.TotalTax),
		}
		subtotal = subtotal.Add(item.Subtotal)
		order.Items = append(order.Items, item)
	}
	order.Subtotal = subtotal

	feeTotal := decimal.Zero
	for _, fee := range wo.FeeLines {
		feeTotal = feeTotal.Add(ParseDecimal(fee.Total))
	}
	order.FeeTotal = feeTotal

	return order
}

// convertWooAddress converts a wire address to the domain snapshot
func convertWooAddress(wa wooAddress) domain.RemoteAddress {
	return domain.RemoteAddress{
		FirstName: wa.FirstName,
		LastName:  wa.LastName,
		Email:     wa.Email,
		Phone:     wa.Phone,
		Address1:  wa.Address1,
		City:      wa.City,
		Country:   wa.Country,
	}
}

// Ensure WooCommerceAdapter implements the StorePlatform port
var _ domain.StorePlatform = (*WooCommerceAdapter)(nil)
