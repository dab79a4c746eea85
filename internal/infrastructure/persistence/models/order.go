package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trafficlens/backend/internal/domain/order"
)

// OrderModel is the persistence model for the Order domain entity.
// The (tenant_id, external_order_id) unique index is the idempotency key
// the sync engine upserts on.
type OrderModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_order_tenant_external,priority:1;index:idx_order_tenant_date,priority:1;index:idx_order_tenant_email,priority:1;index:idx_order_tenant_channel,priority:1"`
	ExternalOrderID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_tenant_external,priority:2"`

	OrderDate time.Time `gorm:"not null;index:idx_order_tenant_date,priority:2"`
	Status    string    `gorm:"type:varchar(50);not null"`
	Currency  string    `gorm:"type:varchar(10);not null"`

	Subtotal      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxTotal      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShippingTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountTotal decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	FeeTotal      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	BillingFirstName  string `gorm:"type:varchar(100)"`
	BillingLastName   string `gorm:"type:varchar(100)"`
	BillingEmail      string `gorm:"type:varchar(255);index:idx_order_tenant_email,priority:2"`
	BillingPhone      string `gorm:"type:varchar(50)"`
	BillingAddress    string `gorm:"type:varchar(500)"`
	BillingCity       string `gorm:"type:varchar(100)"`
	BillingCountry    string `gorm:"type:varchar(10)"`
	ShippingFirstName string `gorm:"type:varchar(100)"`
	ShippingLastName  string `gorm:"type:varchar(100)"`
	ShippingAddress   string `gorm:"type:varchar(500)"`
	ShippingCity      string `gorm:"type:varchar(100)"`
	ShippingCountry   string `gorm:"type:varchar(10)"`

	RawSource        string     `gorm:"type:varchar(255)"`
	RawMedium        string     `gorm:"type:varchar(255)"`
	Source           string     `gorm:"type:varchar(255)"`
	Medium           string     `gorm:"type:varchar(255)"`
	Channel          string     `gorm:"type:varchar(100);index:idx_order_tenant_channel,priority:2"`
	ReferrerURL      string     `gorm:"type:varchar(1000)"`
	DeviceType       string     `gorm:"type:varchar(50)"`
	SessionCount     int        `gorm:"not null;default:0"`
	SessionEntryPage string     `gorm:"type:varchar(1000)"`
	SessionStartTime *time.Time
	UserAgent        string `gorm:"type:varchar(500)"`

	IsNewCustomer bool `gorm:"not null;default:false"`

	RawPayload string `gorm:"type:jsonb"`

	Items []OrderLineItemModel `gorm:"foreignKey:OrderID;references:ID"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineItemModel is the persistence model for order line items.
// Rows are deleted and recreated whenever the parent order is re-synced.
type OrderLineItemModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ExternalID string          `gorm:"type:varchar(100)"`
	ProductID  string          `gorm:"type:varchar(100)"`
	SKU        string          `gorm:"type:varchar(100)"`
	Name       string          `gorm:"type:varchar(500);not null"`
	Quantity   int             `gorm:"not null;default:0"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxTotal   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderLineItemModel) TableName() string {
	return "order_line_items"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *order.Order {
	o := &order.Order{
		ID:              m.ID,
		TenantID:        m.TenantID,
		ExternalOrderID: m.ExternalOrderID,

		OrderDate: m.OrderDate,
		Status:    m.Status,
		Currency:  m.Currency,

		Subtotal:      m.Subtotal,
		TaxTotal:      m.TaxTotal,
		ShippingTotal: m.ShippingTotal,
		DiscountTotal: m.DiscountTotal,
		FeeTotal:      m.FeeTotal,
		Total:         m.Total,

		BillingFirstName:  m.BillingFirstName,
		BillingLastName:   m.BillingLastName,
		BillingEmail:      m.BillingEmail,
		BillingPhone:      m.BillingPhone,
		BillingAddress:    m.BillingAddress,
		BillingCity:       m.BillingCity,
		BillingCountry:    m.BillingCountry,
		ShippingFirstName: m.ShippingFirstName,
		ShippingLastName:  m.ShippingLastName,
		ShippingAddress:   m.ShippingAddress,
		ShippingCity:      m.ShippingCity,
		ShippingCountry:   m.ShippingCountry,

		RawSource:        m.RawSource,
		RawMedium:        m.RawMedium,
		Source:           m.Source,
		Medium:           m.Medium,
		Channel:          m.Channel,
		ReferrerURL:      m.ReferrerURL,
		DeviceType:       m.DeviceType,
		SessionCount:     m.SessionCount,
		SessionEntryPage: m.SessionEntryPage,
		SessionStartTime: m.SessionStartTime,
		UserAgent:        m.UserAgent,

		IsNewCustomer: m.IsNewCustomer,
		RawPayload:    m.RawPayload,

		Items: make([]order.LineItem, 0, len(m.Items)),

		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	for _, item := range m.Items {
		o.Items = append(o.Items, *item.ToDomain())
	}

	return o
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *order.Order) {
	m.ID = o.ID
	m.TenantID = o.TenantID
	m.ExternalOrderID = o.ExternalOrderID

	m.OrderDate = o.OrderDate
	m.Status = o.Status
	m.Currency = o.Currency

	m.Subtotal = o.Subtotal
	m.TaxTotal = o.TaxTotal
	m.ShippingTotal = o.ShippingTotal
	m.DiscountTotal = o.DiscountTotal
	m.FeeTotal = o.FeeTotal
	m.Total = o.Total

	m.BillingFirstName = o.BillingFirstName
	m.BillingLastName = o.BillingLastName
	m.BillingEmail = o.BillingEmail
	m.BillingPhone = o.BillingPhone
	m.BillingAddress = o.BillingAddress
	m.BillingCity = o.BillingCity
	m.BillingCountry = o.BillingCountry
	m.ShippingFirstName = o.ShippingFirstName
	m.ShippingLastName = o.ShippingLastName
	m.ShippingAddress = o.ShippingAddress
	m.ShippingCity = o.ShippingCity
	m.ShippingCountry = o.ShippingCountry

	m.RawSource = o.RawSource
	m.RawMedium = o.RawMedium
	m.Source = o.Source
	m.Medium = o.Medium
	m.Channel = o.Channel
	m.ReferrerURL = o.ReferrerURL
	m.DeviceType = o.DeviceType
	m.SessionCount = o.SessionCount
	m.SessionEntryPage = o.SessionEntryPage
	m.SessionStartTime = o.SessionStartTime
	m.UserAgent = o.UserAgent

	m.IsNewCustomer = o.IsNewCustomer
	m.RawPayload = o.RawPayload

	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	m.Items = make([]OrderLineItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		m.Items = append(m.Items, *OrderLineItemModelFromDomain(&item))
	}
}

// OrderModelFromDomain creates a new persistence model from a domain entity.
func OrderModelFromDomain(o *order.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// ToDomain converts the persistence model to a domain LineItem.
func (m *OrderLineItemModel) ToDomain() *order.LineItem {
	return &order.LineItem{
		ID:         m.ID,
		OrderID:    m.OrderID,
		ExternalID: m.ExternalID,
		ProductID:  m.ProductID,
		SKU:        m.SKU,
		Name:       m.Name,
		Quantity:   m.Quantity,
		UnitPrice:  m.UnitPrice,
		Subtotal:   m.Subtotal,
		Total:      m.Total,
		TaxTotal:   m.TaxTotal,
	}
}

// OrderLineItemModelFromDomain creates a new persistence model from a domain LineItem.
func OrderLineItemModelFromDomain(item *order.LineItem) *OrderLineItemModel {
	return &OrderLineItemModel{
		ID:         item.ID,
		OrderID:    item.OrderID,
		ExternalID: item.ExternalID,
		ProductID:  item.ProductID,
		SKU:        item.SKU,
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Subtotal:   item.Subtotal,
		Total:      item.Total,
		TaxTotal:   item.TaxTotal,
	}
}
