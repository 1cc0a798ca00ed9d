package repository

import (
	"time"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"gorm.io/gorm"
)

// DiveShopRepository defines the interface for tenant-related database operations
type DiveShopRepository interface {
	Create(shop *models.DiveShop) error
	GetByID(id uint) (*models.DiveShop, error)
	GetBySlug(slug string) (*models.DiveShop, error)
	Update(shop *models.DiveShop) error
	Delete(id uint) error
	Count() (int64, error)
}

// WebhookRepository defines the interface for webhook subscription operations
type WebhookRepository interface {
	Create(webhook *models.Webhook) error
	GetByID(id uint) (*models.Webhook, error)
	GetByShopID(shopID uint) ([]models.Webhook, error)
	GetActiveForEvent(shopID uint, event string) ([]models.Webhook, error)
	Update(webhook *models.Webhook) error
	UpdateDeliverySummary(id uint, status string, at time.Time) error
	Delete(id uint) error
	Count() (int64, error)
	CountActive() (int64, error)
}

// DeliveryRepository defines the interface for webhook delivery operations
type DeliveryRepository interface {
	Create(delivery *models.WebhookDelivery) error
	GetByID(id uint) (*models.WebhookDelivery, error)
	GetByUUID(uuid string) (*models.WebhookDelivery, error)
	GetByWebhookID(webhookID uint, offset, limit int) ([]models.WebhookDelivery, error)
	Update(delivery *models.WebhookDelivery) error
	FindDue(limit int) ([]models.WebhookDelivery, error)
	MarkForRetry(id uint) (bool, error)
	CountByStatus(webhookID uint) (*DeliveryStats, error)
	Count() (int64, error)
	CountCreatedBetween(start, end time.Time) (int64, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// DeliveryStats aggregates one webhook's delivery history by status.
type DeliveryStats struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	DiveShop DiveShopRepository
	Webhook  WebhookRepository
	Delivery DeliveryRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DiveShop: NewDiveShopRepository(db),
		Webhook:  NewWebhookRepository(db),
		Delivery: NewDeliveryRepository(db),
	}
}
