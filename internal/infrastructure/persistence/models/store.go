package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/commerce"
)

// StoreConnectionModel is the persistence model for the StoreConnection domain entity.
type StoreConnectionModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID `gorm:"type:uuid;not null;index:idx_store_connection_tenant,priority:1"`
	Name           string    `gorm:"type:varchar(255);not null"`
	BaseURL        string    `gorm:"type:varchar(512);not null"`
	ConsumerKey    string    `gorm:"type:varchar(255);not null"`
	ConsumerSecret string    `gorm:"type:varchar(255);not null"`
	IsEnabled      bool      `gorm:"not null;default:true;index"`
	TimeoutSeconds int       `gorm:"not null;default:30"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StoreConnectionModel) TableName() string {
	return "store_connections"
}

// ToDomain converts the persistence model to a domain StoreConnection entity.
func (m *StoreConnectionModel) ToDomain() *commerce.StoreConnection {
	return &commerce.StoreConnection{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Name:           m.Name,
		BaseURL:        m.BaseURL,
		ConsumerKey:    m.ConsumerKey,
		ConsumerSecret: m.ConsumerSecret,
		IsEnabled:      m.IsEnabled,
		TimeoutSeconds: m.TimeoutSeconds,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain StoreConnection entity.
func (m *StoreConnectionModel) FromDomain(c *commerce.StoreConnection) {
	m.ID = c.ID
	m.TenantID = c.TenantID
	m.Name = c.Name
	m.BaseURL = c.BaseURL
	m.ConsumerKey = c.ConsumerKey
	m.ConsumerSecret = c.ConsumerSecret
	m.IsEnabled = c.IsEnabled
	m.TimeoutSeconds = c.TimeoutSeconds
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// StoreConnectionModelFromDomain creates a new persistence model from a domain entity.
func StoreConnectionModelFromDomain(c *commerce.StoreConnection) *StoreConnectionModel {
	m := &StoreConnectionModel{}
	m.FromDomain(c)
	return m
}
