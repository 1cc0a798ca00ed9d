package models

import (
	"time"
)

// Delivery status values. pending is the only non-terminal state.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
)

const (
	// DefaultMaxAttempts bounds the retry sequence of a single delivery.
	DefaultMaxAttempts = 5
	// MaxResponseBodyBytes caps how much of a receiver's response is stored.
	MaxResponseBodyBytes = 10240
)

// WebhookDelivery is one event's dispatch lifecycle against one webhook,
// including all retry attempts. Created by event producers with
// status=pending and attempts=0; mutated only by the dispatcher and the
// manual-retry operation; deleted only by retention cleanup.
type WebhookDelivery struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UUID      string `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	WebhookID uint   `gorm:"index" json:"webhook_id"`
	Event     string `gorm:"type:varchar(100);index" json:"event"`
	// Payload is the JSON document sent as the request body, immutable after
	// creation.
	Payload string `gorm:"type:longtext" json:"payload"`
	Status  string `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	Attempts     int    `gorm:"default:0" json:"attempts"`
	MaxAttempts  int    `gorm:"default:5" json:"max_attempts"`
	ResponseCode *int   `gorm:"default:null" json:"response_code,omitempty"`
	ResponseBody string `gorm:"type:text" json:"response_body,omitempty"`

	NextRetryAt *time.Time `gorm:"type:timestamp;default:null;index" json:"next_retry_at,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

// IsTerminal reports whether the delivery reached success or failed.
func (d *WebhookDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusSuccess || d.Status == DeliveryStatusFailed
}

// MarkSucceeded records a 2xx outcome and closes the delivery.
func (d *WebhookDelivery) MarkSucceeded(now time.Time) {
	d.Status = DeliveryStatusSuccess
	d.NextRetryAt = nil
	d.CompletedAt = &now
}

// MarkFailed closes the delivery after attempt exhaustion or a
// configuration failure.
func (d *WebhookDelivery) MarkFailed(now time.Time) {
	d.Status = DeliveryStatusFailed
	d.NextRetryAt = nil
	d.CompletedAt = &now
}

// ScheduleRetry keeps the delivery pending and sets the next attempt time.
func (d *WebhookDelivery) ScheduleRetry(next time.Time) {
	d.Status = DeliveryStatusPending
	d.NextRetryAt = &next
	d.CompletedAt = nil
}

// SetResponseBody stores the receiver response, truncated to the storage cap.
func (d *WebhookDelivery) SetResponseBody(body string) {
	if len(body) > MaxResponseBodyBytes {
		body = body[:MaxResponseBodyBytes]
	}
	d.ResponseBody = body
}
