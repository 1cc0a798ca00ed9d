package webhooks

import (
	"github.com/gofiber/fiber/v2/log"

	"github.com/DiveDeskApp/DiveDesk/app/repository"
)

// RetryDelivery transitions a failed delivery back to pending with an
// immediate retry time, so the next scan picks it up. A delivery in any
// other status is left untouched; the boolean reports whether a retry was
// actually scheduled.
func (d *Dispatcher) RetryDelivery(id uint) (bool, error) {
	retried, err := d.deliveries.MarkForRetry(id)
	if err != nil {
		return false, err
	}
	if retried {
		log.Infof("[Webhooks] delivery %d queued for manual retry", id)
	}
	return retried, nil
}

// DeliveryStats returns the webhook's delivery counts bucketed by status,
// computed from its full delivery history.
func (d *Dispatcher) DeliveryStats(webhookID uint) (*repository.DeliveryStats, error) {
	return d.deliveries.CountByStatus(webhookID)
}

// CleanupDeliveries permanently deletes deliveries older than the retention
// window, regardless of status, and returns how many rows were removed.
// Webhook subscriptions are never touched.
func (d *Dispatcher) CleanupDeliveries(daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	cutoff := d.now().AddDate(0, 0, -daysToKeep)

	deleted, err := d.deliveries.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Infof("[Webhooks] retention cleanup removed %d deliveries older than %d days", deleted, daysToKeep)
	}
	return deleted, nil
}
