package commerce

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform Errors
// ---------------------------------------------------------------------------

var (
	// ErrPlatformUnavailable indicates a transport-level failure (timeout,
	// connection refused)
	ErrPlatformUnavailable = errors.New("commerce: store temporarily unavailable")
	// ErrPlatformRequestFailed indicates a non-2xx response from the store
	ErrPlatformRequestFailed = errors.New("commerce: store request failed")
	// ErrPlatformInvalidResponse indicates an unparseable store response
	ErrPlatformInvalidResponse = errors.New("commerce: invalid store response")
	// ErrPlatformAuthFailed indicates rejected credentials
	ErrPlatformAuthFailed = errors.New("commerce: store authentication failed")
	// ErrPlatformRateLimited indicates the store throttled the request
	ErrPlatformRateLimited = errors.New("commerce: store rate limited")
)

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// RemoteOrder is one order as returned by the remote store API, mapped to
// a platform-neutral shape. RawPayload keeps the verbatim JSON.
type RemoteOrder struct {
	ExternalID   string
	Number       string
	Status       string
	Currency     string
	DateCreated  time.Time
	DateModified time.Time

	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	DiscountTotal decimal.Decimal
	FeeTotal      decimal.Decimal
	Total         decimal.Decimal

	Billing  RemoteAddress
	Shipping RemoteAddress

	// CustomerNote is the free-text note the buyer left at checkout.
	CustomerNote string
	// Meta is the order's key-value metadata list.
	Meta []RemoteMetaEntry

	Items []RemoteLineItem

	RawPayload string

	// MappingError is set when the adapter could not fully map the record,
	// for example an unparseable order date. The order still carries its
	// external id so consumers can report the record instead of dropping it.
	MappingError string
}

// RemoteAddress is a billing or shipping contact snapshot.
type RemoteAddress struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address1  string
	City      string
	Country   string
}

// RemoteMetaEntry is one key-value pair from the order's metadata list.
type RemoteMetaEntry struct {
	Key   string
	Value string
}

// RemoteLineItem is one line item of a remote order.
type RemoteLineItem struct {
	ExternalID string
	ProductID  string
	SKU        string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
	TaxTotal   decimal.Decimal
}

// ---------------------------------------------------------------------------
// Request/Response DTOs
// ---------------------------------------------------------------------------

// OrderPullRequest asks for one page of orders in a half-open window
// [After, Before).
type OrderPullRequest struct {
	// After is the inclusive lower bound of the window (UTC)
	After time.Time
	// Before is the exclusive upper bound of the window (UTC)
	Before time.Time
	// Page is the page number (1-indexed)
	Page int
	// PageSize is the number of orders per page
	PageSize int
}

// Validate validates the pull request and applies paging defaults.
func (r *OrderPullRequest) Validate() error {
	if r.After.IsZero() || r.Before.IsZero() {
		return errors.New("commerce: window bounds are required")
	}
	if r.After.After(r.Before) {
		return errors.New("commerce: window start must be before window end")
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 || r.PageSize > 100 {
		r.PageSize = 100
	}
	return nil
}

// OrderPullResponse is one page of pulled orders.
type OrderPullResponse struct {
	Orders []RemoteOrder
	// HasMore is true when the page was full, i.e. another page may exist
	HasMore bool
}

// ---------------------------------------------------------------------------
// StorePlatform Port
// ---------------------------------------------------------------------------

// StorePlatform is the port for a remote commerce store. Concrete adapters
// live in the infrastructure layer.
type StorePlatform interface {
	// PullOrders pulls one page of orders within the window. Timestamps
	// are sent to the remote in unambiguous UTC wire format.
	PullOrders(ctx context.Context, conn *StoreConnection, req *OrderPullRequest) (*OrderPullResponse, error)

	// Ping verifies connectivity and credentials for a connection.
	Ping(ctx context.Context, conn *StoreConnection) error
}
