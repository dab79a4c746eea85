package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trafficlens/backend/internal/domain/attribution"
)

// ChannelRuleModel is the persistence model for the ChannelRule domain entity.
// The partial unique index enforces pair uniqueness among active rules only,
// so deactivated rules keep their history without blocking new rules.
type ChannelRuleModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index:idx_channel_rule_tenant,priority:1"`
	Source    string    `gorm:"type:varchar(255);not null"`
	Medium    string    `gorm:"type:varchar(255);not null"`
	Channel   string    `gorm:"type:varchar(100);not null;index"`
	IsActive  bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChannelRuleModel) TableName() string {
	return "channel_rules"
}

// ToDomain converts the persistence model to a domain ChannelRule entity.
func (m *ChannelRuleModel) ToDomain() *attribution.ChannelRule {
	return &attribution.ChannelRule{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Source:    m.Source,
		Medium:    m.Medium,
		Channel:   m.Channel,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ChannelRule entity.
func (m *ChannelRuleModel) FromDomain(r *attribution.ChannelRule) {
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.Source = r.Source
	m.Medium = r.Medium
	m.Channel = r.Channel
	m.IsActive = r.IsActive
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// ChannelRuleModelFromDomain creates a new persistence model from a domain entity.
func ChannelRuleModelFromDomain(r *attribution.ChannelRule) *ChannelRuleModel {
	m := &ChannelRuleModel{}
	m.FromDomain(r)
	return m
}
