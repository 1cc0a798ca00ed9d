package webhooks

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/metrics/counter"
)

// Dispatcher performs webhook delivery attempts against the shared store.
// All collaborators are injected so tests can substitute fakes and multiple
// independent instances can coexist.
type Dispatcher struct {
	webhooks   repository.WebhookRepository
	deliveries repository.DeliveryRepository
	client     *http.Client
	pacing     time.Duration
	now        func() time.Time
	// onResult receives the outcome of every completed attempt. Nil disables
	// counter accounting (unit tests).
	onResult func(webhookID uint, success bool)
}

// NewDispatcher creates a dispatcher over the given repositories with the
// production HTTP client and Redis-backed counters.
func NewDispatcher(repos *repository.Repositories) *Dispatcher {
	return &Dispatcher{
		webhooks:   repos.Webhook,
		deliveries: repos.Delivery,
		client:     &http.Client{Timeout: DeliveryTimeout},
		pacing:     PacingDelay,
		now:        time.Now,
		onResult: func(webhookID uint, success bool) {
			if err := counter.AddDeliveryAttempt(webhookID); err != nil {
				log.Debugf("[Webhooks] counter increment failed for webhook %d: %v", webhookID, err)
			}
			if !success {
				if err := counter.AddDeliveryFailure(webhookID); err != nil {
					log.Debugf("[Webhooks] failure counter increment failed for webhook %d: %v", webhookID, err)
				}
			}
		},
	}
}

// AttemptDelivery performs exactly one delivery attempt for the given
// delivery ID and reports true only on a 2xx response.
//
// A missing or inactive webhook fails the delivery immediately without
// consuming an attempt. Any HTTP failure, network error or timeout keeps the
// delivery pending with a backoff-scheduled retry until attempts are
// exhausted, then fails it terminally. A delivery that already reached a
// terminal state is left untouched.
func (d *Dispatcher) AttemptDelivery(id uint) (bool, error) {
	delivery, err := d.deliveries.GetByID(id)
	if err != nil {
		return false, fmt.Errorf("load delivery %d: %w", id, err)
	}

	if delivery.IsTerminal() {
		log.Debugf("[Webhooks] delivery %d already %s, skipping", delivery.ID, delivery.Status)
		return false, nil
	}

	now := d.now()

	webhook, err := d.webhooks.GetByID(delivery.WebhookID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("load webhook %d: %w", delivery.WebhookID, err)
		}
		// Configuration failure: terminal, no attempt consumed, no webhook
		// row left to update.
		delivery.SetResponseBody("webhook not found")
		delivery.MarkFailed(now)
		if err := d.deliveries.Update(delivery); err != nil {
			return false, fmt.Errorf("persist delivery %d: %w", delivery.ID, err)
		}
		return false, nil
	}

	if !webhook.IsActive {
		delivery.SetResponseBody("webhook is inactive")
		delivery.MarkFailed(now)
		if err := d.deliveries.Update(delivery); err != nil {
			return false, fmt.Errorf("persist delivery %d: %w", delivery.ID, err)
		}
		if err := d.webhooks.UpdateDeliverySummary(webhook.ID, delivery.Status, now); err != nil {
			log.Errorf("[Webhooks] failed to update summary for webhook %d: %v", webhook.ID, err)
		}
		return false, nil
	}

	newAttempts := delivery.Attempts + 1
	success, responseCode, responseBody := d.send(webhook, delivery)

	delivery.Attempts = newAttempts
	delivery.ResponseCode = responseCode
	delivery.SetResponseBody(responseBody)

	maxAttempts := delivery.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	switch {
	case success:
		delivery.MarkSucceeded(now)
	case newAttempts < maxAttempts:
		delivery.ScheduleRetry(NextRetryAt(now, newAttempts))
	default:
		delivery.MarkFailed(now)
	}

	if err := d.deliveries.Update(delivery); err != nil {
		return false, fmt.Errorf("persist delivery %d: %w", delivery.ID, err)
	}
	if err := d.webhooks.UpdateDeliverySummary(webhook.ID, delivery.Status, now); err != nil {
		log.Errorf("[Webhooks] failed to update summary for webhook %d: %v", webhook.ID, err)
	}

	if d.onResult != nil {
		d.onResult(webhook.ID, success)
	}

	return success, nil
}

// send issues the signed HTTP POST and interprets the raw outcome. A nil
// response code means the request never produced an HTTP response (network
// error or timeout).
func (d *Dispatcher) send(webhook *models.Webhook, delivery *models.WebhookDelivery) (bool, *int, string) {
	payload := []byte(delivery.Payload)

	req, err := http.NewRequest(http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		return false, nil, fmt.Sprintf("invalid request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderSignature, SignPayload(webhook.Secret, payload))
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderDelivery, delivery.UUID)

	resp, err := d.client.Do(req)
	if err != nil {
		return false, nil, err.Error()
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	var body string
	data, readErr := io.ReadAll(io.LimitReader(resp.Body, models.MaxResponseBodyBytes))
	if readErr != nil {
		body = fmt.Sprintf("failed to read response body: %v", readErr)
	} else {
		body = strings.ToValidUTF8(string(data), "")
	}

	return code >= 200 && code < 300, &code, body
}
