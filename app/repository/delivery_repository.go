package repository

import (
	"time"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"gorm.io/gorm"
)

// deliveryRepository implements the DeliveryRepository interface
type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository creates a new delivery repository instance
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create inserts a new pending delivery
func (r *deliveryRepository) Create(delivery *models.WebhookDelivery) error {
	return r.db.Create(delivery).Error
}

// GetByID retrieves a delivery by its numeric ID
func (r *deliveryRepository) GetByID(id uint) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.First(&delivery, id).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// GetByUUID retrieves a delivery by its externally visible UUID
func (r *deliveryRepository) GetByUUID(uuid string) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.Where("uuid = ?", uuid).First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// GetByWebhookID returns a page of a webhook's delivery history, newest first
func (r *deliveryRepository) GetByWebhookID(webhookID uint, offset, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.Where("webhook_id = ?", webhookID).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// Update persists the outcome of a delivery attempt
func (r *deliveryRepository) Update(delivery *models.WebhookDelivery) error {
	return r.db.Save(delivery).Error
}

// FindDue selects pending deliveries that are ready for an attempt: never
// tried yet, or scheduled for a retry at or before now. No ordering is
// guaranteed beyond what the index yields.
func (r *deliveryRepository) FindDue(limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.Where("status = ? AND (attempts = 0 OR next_retry_at <= ?)",
		models.DeliveryStatusPending, time.Now()).
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// MarkForRetry transitions a failed delivery back to pending with an
// immediate retry time. The conditional WHERE makes it a no-op on any other
// status; the boolean reports whether a row actually changed.
func (r *deliveryRepository) MarkForRetry(id uint) (bool, error) {
	result := r.db.Model(&models.WebhookDelivery{}).
		Where("id = ? AND status = ?", id, models.DeliveryStatusFailed).
		Updates(map[string]any{
			"status":        models.DeliveryStatusPending,
			"next_retry_at": time.Now(),
			"completed_at":  nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CountByStatus scans a webhook's full delivery history and buckets it by status
func (r *deliveryRepository) CountByStatus(webhookID uint) (*DeliveryStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := r.db.Model(&models.WebhookDelivery{}).
		Select("status, COUNT(*) as count").
		Where("webhook_id = ?", webhookID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &DeliveryStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.DeliveryStatusSuccess:
			stats.Success = row.Count
		case models.DeliveryStatusFailed:
			stats.Failed = row.Count
		case models.DeliveryStatusPending:
			stats.Pending = row.Count
		}
	}
	return stats, nil
}

// Count returns the total number of deliveries across all webhooks
func (r *deliveryRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookDelivery{}).Count(&count).Error
	return count, err
}

// CountCreatedBetween returns the number of deliveries created in [start, end)
func (r *deliveryRepository) CountCreatedBetween(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.WebhookDelivery{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// DeleteOlderThan permanently removes deliveries created before the cutoff,
// regardless of status, and returns how many rows were removed.
func (r *deliveryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&models.WebhookDelivery{})
	return result.RowsAffected, result.Error
}
