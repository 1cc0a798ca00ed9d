package repository

import (
	"time"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"gorm.io/gorm"
)

// webhookRepository implements the WebhookRepository interface
type webhookRepository struct {
	db *gorm.DB
}

// NewWebhookRepository creates a new webhook repository instance
func NewWebhookRepository(db *gorm.DB) WebhookRepository {
	return &webhookRepository{db: db}
}

// Create creates a new webhook subscription in the database
func (r *webhookRepository) Create(webhook *models.Webhook) error {
	return r.db.Create(webhook).Error
}

// GetByID retrieves a webhook by its ID
func (r *webhookRepository) GetByID(id uint) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.db.First(&webhook, id).Error
	if err != nil {
		return nil, err
	}
	return &webhook, nil
}

// GetByShopID retrieves all webhooks owned by a shop
func (r *webhookRepository) GetByShopID(shopID uint) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.Where("shop_id = ?", shopID).Order("id ASC").Find(&webhooks).Error
	return webhooks, err
}

// GetActiveForEvent returns the shop's active webhooks subscribed to the
// given event. The subscription set is a JSON text column, so membership is
// checked in Go after narrowing to the shop's active rows.
func (r *webhookRepository) GetActiveForEvent(shopID uint, event string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.Where("shop_id = ? AND is_active = ?", shopID, true).Find(&webhooks).Error
	if err != nil {
		return nil, err
	}

	matched := make([]models.Webhook, 0, len(webhooks))
	for _, w := range webhooks {
		if w.SubscribesTo(event) {
			matched = append(matched, w)
		}
	}
	return matched, nil
}

// Update updates an existing webhook in the database
func (r *webhookRepository) Update(webhook *models.Webhook) error {
	return r.db.Save(webhook).Error
}

// UpdateDeliverySummary mirrors the outcome of the most recent delivery
// attempt onto the webhook row without touching other columns.
func (r *webhookRepository) UpdateDeliverySummary(id uint, status string, at time.Time) error {
	return r.db.Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_delivery_at":     at,
			"last_delivery_status": status,
		}).Error
}

// Delete soft-deletes a webhook by ID
func (r *webhookRepository) Delete(id uint) error {
	return r.db.Delete(&models.Webhook{}, id).Error
}

// Count returns the total number of webhooks
func (r *webhookRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Webhook{}).Count(&count).Error
	return count, err
}

// CountActive returns the number of active webhooks
func (r *webhookRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&models.Webhook{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}
