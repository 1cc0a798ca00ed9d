package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingCancelled = "booking.cancelled"
	EventCourseCreated    = "course.created"
	EventCourseUpdated    = "course.updated"
	EventSitePublished    = "site.published"
)

// KnownEvents lists every event name a webhook may subscribe to.
var KnownEvents = []string{
	EventBookingCreated,
	EventBookingUpdated,
	EventBookingCancelled,
	EventCourseCreated,
	EventCourseUpdated,
	EventSitePublished,
}

// Webhook is a shop-owned subscription: a destination URL, a signing secret
// and the set of event names the shop wants pushed to that URL.
type Webhook struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	ShopID uint   `gorm:"index" json:"shop_id"`
	URL    string `gorm:"type:varchar(500)" json:"url" validate:"required,url,max=500"`
	Secret string `gorm:"type:varchar(100)" json:"-"`
	// Events holds the subscribed event names as a JSON-encoded string array.
	Events   string `gorm:"type:text" json:"-"`
	IsActive bool   `gorm:"default:true;index" json:"is_active"`

	// Denormalized summary of the most recent delivery attempt. Mutated only
	// by the dispatcher.
	LastDeliveryAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_delivery_at,omitempty"`
	LastDeliveryStatus string     `gorm:"type:varchar(20);default:null" json:"last_delivery_status,omitempty"`

	// Running totals flushed in batches from the Redis counter buffer.
	DeliveryCount int64 `gorm:"default:0" json:"delivery_count"`
	FailureCount  int64 `gorm:"default:0" json:"failure_count"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (w *Webhook) Validate() error {
	v := validator.New()

	return v.Struct(w)
}

// GenerateSecret creates a random signing secret for new webhooks.
func (w *Webhook) GenerateSecret() error {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	w.Secret = hex.EncodeToString(b)
	return nil
}

// SetEvents stores the given event names as the subscription set.
func (w *Webhook) SetEvents(events []string) error {
	data, err := json.Marshal(events)
	if err != nil {
		return err
	}
	w.Events = string(data)
	return nil
}

// EventList returns the subscribed event names. An unreadable or empty
// Events column yields an empty list.
func (w *Webhook) EventList() []string {
	if w.Events == "" {
		return nil
	}
	var events []string
	if err := json.Unmarshal([]byte(w.Events), &events); err != nil {
		return nil
	}
	return events
}

// SubscribesTo reports whether the webhook wants the given event.
func (w *Webhook) SubscribesTo(event string) bool {
	for _, e := range w.EventList() {
		if e == event {
			return true
		}
	}
	return false
}
