package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is one purchase transaction from one tenant's store. The pair
// (TenantID, ExternalOrderID) is unique and is the idempotency key for
// synchronization.
type Order struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ExternalOrderID string

	// Order facts
	OrderDate time.Time
	Status    string
	Currency  string

	// Financials. Exact decimals throughout; floats drift on currency math.
	Subtotal      decimal.Decimal
	TaxTotal      decimal.Decimal
	ShippingTotal decimal.Decimal
	DiscountTotal decimal.Decimal
	FeeTotal      decimal.Decimal
	Total         decimal.Decimal

	// Billing/shipping contact snapshot, captured at order time. Not linked
	// to a live customer entity.
	BillingFirstName  string
	BillingLastName   string
	BillingEmail      string
	BillingPhone      string
	BillingAddress    string
	BillingCity       string
	BillingCountry    string
	ShippingFirstName string
	ShippingLastName  string
	ShippingAddress   string
	ShippingCity      string
	ShippingCountry   string

	// Attribution snapshot. Raw* fields hold what extraction found before
	// normalization; Source/Medium/Channel are the normalized results.
	// All optional; absence is common.
	RawSource        string
	RawMedium        string
	Source           string
	Medium           string
	Channel          string
	ReferrerURL      string
	DeviceType       string
	SessionCount     int
	SessionEntryPage string
	SessionStartTime *time.Time
	UserAgent        string

	// IsNewCustomer is computed once, at first sight of the order, by
	// checking for any strictly-earlier order with the same billing email.
	// Never recomputed on re-sync.
	IsNewCustomer bool

	// RawPayload retains the verbatim remote representation so attribution
	// can be re-derived if extraction rules change later.
	RawPayload string

	Items []LineItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is a child of Order. Line items are fully replaced on every
// re-sync of their parent: the remote API guarantees no stable item id,
// so delete-then-recreate trades a few wasted writes for not having to
// track partial item updates.
type LineItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
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

// NormalizedBillingEmail returns the lower-cased billing email used for
// new-customer determination.
func (o *Order) NormalizedBillingEmail() string {
	return strings.ToLower(strings.TrimSpace(o.BillingEmail))
}

// Repository defines the interface for persisting orders.
type Repository interface {
	// FindByExternalID finds an order by its idempotency key
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalOrderID string) (*Order, error)

	// FindByWindow returns orders whose order date falls in [after, before)
	FindByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]Order, error)

	// ExternalIDsByWindow returns only the external ids for a window
	ExternalIDsByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]string, error)

	// Create inserts a new order together with its line items, atomically
	Create(ctx context.Context, o *Order) error

	// Update refreshes the mutable fields of an existing order and replaces
	// its line items, atomically
	Update(ctx context.Context, o *Order) error

	// HasEarlierOrderWithEmail reports whether any order for the tenant and
	// billing email has an order date strictly before the given date
	HasEarlierOrderWithEmail(ctx context.Context, tenantID uuid.UUID, billingEmail string, before time.Time) (bool, error)

	// CountByChannel returns the number of orders per channel in a window
	CountByChannel(ctx context.Context, tenantID uuid.UUID, after, before time.Time) (map[string]int64, error)
}
