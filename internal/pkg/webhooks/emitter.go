package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/cache"
)

// SubscriptionCache caches resolved subscription sets so high-volume event
// producers do not hit the webhooks table on every emission.
type SubscriptionCache interface {
	Get(key string) (string, error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
}

// redisSubscriptionCache adapts the shared cache package.
type redisSubscriptionCache struct{}

func (redisSubscriptionCache) Get(key string) (string, error) { return cache.Get(key) }
func (redisSubscriptionCache) Set(key string, value string, ttl time.Duration) error {
	return cache.Set(key, value, ttl)
}
func (redisSubscriptionCache) Delete(key string) error { return cache.Delete(key) }

// eventEnvelope is the JSON document stored on the delivery and posted to
// the receiver. Its shape is part of the wire contract.
type eventEnvelope struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	ShopID    uint        `json:"shop_id"`
	CreatedAt string      `json:"created_at"`
	Data      interface{} `json:"data"`
}

// Emitter fans an event out to a shop's subscribed webhooks by inserting
// one pending delivery per webhook. Dispatch itself is asynchronous; the
// caller gets no delivery outcome, only enqueue errors.
type Emitter struct {
	webhooks   repository.WebhookRepository
	deliveries repository.DeliveryRepository
	subs       SubscriptionCache
	cacheTTL   time.Duration
}

// NewEmitter creates an emitter with the Redis-backed subscription cache.
func NewEmitter(repos *repository.Repositories) *Emitter {
	return &Emitter{
		webhooks:   repos.Webhook,
		deliveries: repos.Delivery,
		subs:       redisSubscriptionCache{},
		cacheTTL:   SubscriptionCacheTTL,
	}
}

// Emit enqueues one pending delivery per active webhook of the shop that
// subscribes to the event. It returns the number of deliveries created.
// Inactive and unsubscribed webhooks never receive a delivery.
func (e *Emitter) Emit(shopID uint, event string, data interface{}) (int, error) {
	envelope := eventEnvelope{
		ID:        "evt_" + uuid.NewString(),
		Event:     event,
		ShopID:    shopID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}

	webhookIDs, err := e.resolveSubscribers(shopID, event)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, webhookID := range webhookIDs {
		delivery := &models.WebhookDelivery{
			UUID:        uuid.NewString(),
			WebhookID:   webhookID,
			Event:       event,
			Payload:     string(payload),
			Status:      models.DeliveryStatusPending,
			MaxAttempts: models.DefaultMaxAttempts,
		}
		if err := e.deliveries.Create(delivery); err != nil {
			log.Errorf("[Webhooks] failed to enqueue %s for webhook %d: %v", event, webhookID, err)
			continue
		}
		created++
	}

	if created > 0 {
		log.Infof("[Webhooks] enqueued %s for shop %d to %d webhooks", event, shopID, created)
	}
	return created, nil
}

// resolveSubscribers returns the IDs of the shop's active webhooks
// subscribed to the event, served from the cache when possible. A cache
// failure falls back to the database.
func (e *Emitter) resolveSubscribers(shopID uint, event string) ([]uint, error) {
	key := subscriptionCacheKey(shopID, event)

	if cached, err := e.subs.Get(key); err == nil {
		var ids []uint
		if err := json.Unmarshal([]byte(cached), &ids); err == nil {
			return ids, nil
		}
	}

	matched, err := e.webhooks.GetActiveForEvent(shopID, event)
	if err != nil {
		return nil, fmt.Errorf("resolve subscribers for shop %d: %w", shopID, err)
	}

	ids := make([]uint, 0, len(matched))
	for _, w := range matched {
		ids = append(ids, w.ID)
	}

	if data, err := json.Marshal(ids); err == nil {
		if err := e.subs.Set(key, string(data), e.cacheTTL); err != nil {
			log.Debugf("[Webhooks] subscription cache write failed for shop %d: %v", shopID, err)
		}
	}

	return ids, nil
}

// InvalidateSubscriptions drops the shop's cached subscription sets. Called
// by the operator API after any webhook mutation so changes apply without
// waiting out the TTL.
func (e *Emitter) InvalidateSubscriptions(shopID uint) {
	for _, event := range models.KnownEvents {
		if err := e.subs.Delete(subscriptionCacheKey(shopID, event)); err != nil {
			log.Debugf("[Webhooks] subscription cache invalidation failed for shop %d: %v", shopID, err)
		}
	}
}

func subscriptionCacheKey(shopID uint, event string) string {
	return fmt.Sprintf("webhooks:subs:%d:%s", shopID, event)
}
