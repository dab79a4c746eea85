package commerce

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// WooCommerce REST API v3 Wire Types
// ---------------------------------------------------------------------------

// wooOrder represents one order object from GET /wp-json/wc/v3/orders
type wooOrder struct {
	ID           int64         `json:"id"`
	Number       string        `json:"number"`
	Status       string        `json:"status"`
	Currency     string        `json:"currency"`
	DateCreated  string        `json:"date_created_gmt"`
	DateModified string        `json:"date_modified_gmt"`

	Total         string `json:"total"`
	TotalTax      string `json:"total_tax"`
	ShippingTotal string `json:"shipping_total"`
	DiscountTotal string `json:"discount_total"`

	CustomerNote string `json:"customer_note"`

	Billing  wooAddress `json:"billing"`
	Shipping wooAddress `json:"shipping"`

	LineItems []wooLineItem `json:"line_items"`
	FeeLines  []wooFeeLine  `json:"fee_lines"`
	MetaData  []wooMetaData `json:"meta_data"`
}

// wooAddress is the nested billing/shipping object
type wooAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	Country   string `json:"country"`
}

// wooLineItem is one entry of line_items
type wooLineItem struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"product_id"`
	SKU       string      `json:"sku"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	Subtotal  string      `json:"subtotal"`
	Total     string      `json:"total"`
	TotalTax  string      `json:"total_tax"`
}

// wooFeeLine is one entry of fee_lines
type wooFeeLine struct {
	Name  string `json:"name"`
	Total string `json:"total"`
}

// wooMetaData is one entry of the meta_data key-value list. Values may be
// strings, numbers, or arbitrary structures; non-string values are kept as
// their compact JSON encoding.
type wooMetaData struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// StringValue returns the metadata value as a plain string.
func (m wooMetaData) StringValue() string {
	var s string
	if err := json.Unmarshal(m.Value, &s); err == nil {
		return s
	}
	return string(m.Value)
}

// ParseDecimal parses a WooCommerce money string, returning zero for empty
// or malformed input. The API serializes all money as strings.
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
