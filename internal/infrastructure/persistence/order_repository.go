package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trafficlens/backend/internal/domain/order"
	"github.com/trafficlens/backend/internal/domain/shared"
	"github.com/trafficlens/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByExternalID finds an order by its idempotency key
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalOrderID string) (*order.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND external_order_id = ?", tenantID, externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByWindow returns orders whose order date falls in [after, before)
func (r *GormOrderRepository) FindByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]order.Order, error) {
	var orderModels []models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND order_date >= ? AND order_date < ?", tenantID, after, before).
		Order("order_date ASC").
		Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]order.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// ExternalIDsByWindow returns only the external ids for a window
func (r *GormOrderRepository) ExternalIDsByWindow(ctx context.Context, tenantID uuid.UUID, after, before time.Time) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("tenant_id = ? AND order_date >= ? AND order_date < ?", tenantID, after, before).
		Pluck("external_order_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Create inserts a new order together with its line items, atomically.
// A concurrent insert of the same (tenant_id, external_order_id) pair
// surfaces as ErrAlreadyExists so the caller can fall back to an update.
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return nil
	})
}

// Update refreshes the mutable fields of an existing order and replaces its
// line items, atomically. IsNewCustomer and CreatedAt are deliberately not
// in the update set: they are fixed at first sight of the order.
func (r *GormOrderRepository) Update(ctx context.Context, o *order.Order) error {
	model := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]interface{}{
				"order_date":          model.OrderDate,
				"status":              model.Status,
				"currency":            model.Currency,
				"subtotal":            model.Subtotal,
				"tax_total":           model.TaxTotal,
				"shipping_total":      model.ShippingTotal,
				"discount_total":      model.DiscountTotal,
				"fee_total":           model.FeeTotal,
				"total":               model.Total,
				"billing_first_name":  model.BillingFirstName,
				"billing_last_name":   model.BillingLastName,
				"billing_email":       model.BillingEmail,
				"billing_phone":       model.BillingPhone,
				"billing_address":     model.BillingAddress,
				"billing_city":        model.BillingCity,
				"billing_country":     model.BillingCountry,
				"shipping_first_name": model.ShippingFirstName,
				"shipping_last_name":  model.ShippingLastName,
				"shipping_address":    model.ShippingAddress,
				"shipping_city":       model.ShippingCity,
				"shipping_country":    model.ShippingCountry,
				"raw_source":          model.RawSource,
				"raw_medium":          model.RawMedium,
				"source":              model.Source,
				"medium":              model.Medium,
				"channel":             model.Channel,
				"referrer_url":        model.ReferrerURL,
				"device_type":         model.DeviceType,
				"session_count":       model.SessionCount,
				"session_entry_page":  model.SessionEntryPage,
				"session_start_time":  model.SessionStartTime,
				"user_agent":          model.UserAgent,
				"raw_payload":         model.RawPayload,
				"updated_at":          time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		// Replace line items wholesale
		if err := tx.Where("order_id = ?", model.ID).
			Delete(&models.OrderLineItemModel{}).Error; err != nil {
			return err
		}
		for i := range model.Items {
			model.Items[i].OrderID = model.ID
			if err := tx.Create(&model.Items[i]).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

// HasEarlierOrderWithEmail reports whether any order for the tenant and
// billing email has an order date strictly before the given date
func (r *GormOrderRepository) HasEarlierOrderWithEmail(ctx context.Context, tenantID uuid.UUID, billingEmail string, before time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("tenant_id = ? AND LOWER(billing_email) = LOWER(?) AND order_date < ?", tenantID, billingEmail, before).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByChannel returns the number of orders per channel in a window
func (r *GormOrderRepository) CountByChannel(ctx context.Context, tenantID uuid.UUID, after, before time.Time) (map[string]int64, error) {
	type row struct {
		Channel string
		Count   int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Select("channel, COUNT(*) as count").
		Where("tenant_id = ? AND order_date >= ? AND order_date < ?", tenantID, after, before).
		Group("channel").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Channel] = r.Count
	}
	return counts, nil
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
