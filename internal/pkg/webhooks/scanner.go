package webhooks

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// ProcessDue selects up to limit due deliveries and attempts each one in
// sequence, pacing the outbound request rate. An unexpected error on one
// delivery is logged and counted as a failure without aborting the scan.
// Only aggregate counts are surfaced; individual outcomes live on the
// delivery rows.
func (d *Dispatcher) ProcessDue(limit int) ScanResult {
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	var result ScanResult

	due, err := d.deliveries.FindDue(limit)
	if err != nil {
		log.Errorf("[Webhooks] failed to select due deliveries: %v", err)
		return result
	}
	if len(due) == 0 {
		return result
	}

	log.Infof("[Webhooks] processing %d due deliveries", len(due))

	for i, delivery := range due {
		success, err := d.AttemptDelivery(delivery.ID)
		if err != nil {
			log.Errorf("[Webhooks] delivery %d: %v", delivery.ID, err)
		}
		if success {
			result.Succeeded++
		} else {
			result.Failed++
		}

		if i < len(due)-1 {
			time.Sleep(d.pacing)
		}
	}

	return result
}
