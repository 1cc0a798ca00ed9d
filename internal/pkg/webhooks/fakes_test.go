package webhooks

import (
	"net/http"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"github.com/DiveDeskApp/DiveDesk/app/repository"
)

// summaryRecord captures one UpdateDeliverySummary call.
type summaryRecord struct {
	WebhookID uint
	Status    string
	At        time.Time
}

// fakeWebhookRepo is an in-memory WebhookRepository for tests.
type fakeWebhookRepo struct {
	mu        sync.Mutex
	webhooks  map[uint]*models.Webhook
	nextID    uint
	summaries []summaryRecord
	// lookups counts GetActiveForEvent calls to observe cache behavior.
	lookups int
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{webhooks: make(map[uint]*models.Webhook), nextID: 1}
}

func (f *fakeWebhookRepo) put(w *models.Webhook) *models.Webhook {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w.ID == 0 {
		w.ID = f.nextID
		f.nextID++
	} else if w.ID >= f.nextID {
		f.nextID = w.ID + 1
	}
	cp := *w
	f.webhooks[w.ID] = &cp
	return w
}

func (f *fakeWebhookRepo) Create(w *models.Webhook) error {
	f.put(w)
	return nil
}

func (f *fakeWebhookRepo) GetByID(id uint) (*models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.webhooks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWebhookRepo) GetByShopID(shopID uint) ([]models.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Webhook
	for _, w := range f.webhooks {
		if w.ShopID == shopID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) GetActiveForEvent(shopID uint, event string) ([]models.Webhook, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()

	hooks, _ := f.GetByShopID(shopID)
	var out []models.Webhook
	for _, w := range hooks {
		if w.IsActive && w.SubscribesTo(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) Update(w *models.Webhook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	f.webhooks[w.ID] = &cp
	return nil
}

func (f *fakeWebhookRepo) UpdateDeliverySummary(id uint, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summaryRecord{WebhookID: id, Status: status, At: at})
	if w, ok := f.webhooks[id]; ok {
		w.LastDeliveryAt = &at
		w.LastDeliveryStatus = status
	}
	return nil
}

func (f *fakeWebhookRepo) Delete(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.webhooks, id)
	return nil
}

func (f *fakeWebhookRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.webhooks)), nil
}

func (f *fakeWebhookRepo) CountActive() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, w := range f.webhooks {
		if w.IsActive {
			count++
		}
	}
	return count, nil
}

// fakeDeliveryRepo is an in-memory DeliveryRepository for tests.
type fakeDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[uint]*models.WebhookDelivery
	nextID     uint
	// getErr lets a test inject a store failure for a given delivery ID.
	getErr map[uint]error
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{
		deliveries: make(map[uint]*models.WebhookDelivery),
		nextID:     1,
		getErr:     make(map[uint]error),
	}
}

func (f *fakeDeliveryRepo) put(d *models.WebhookDelivery) *models.WebhookDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == 0 {
		d.ID = f.nextID
		f.nextID++
	} else if d.ID >= f.nextID {
		f.nextID = d.ID + 1
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	cp := *d
	f.deliveries[d.ID] = &cp
	return d
}

func (f *fakeDeliveryRepo) Create(d *models.WebhookDelivery) error {
	f.put(d)
	return nil
}

func (f *fakeDeliveryRepo) GetByID(id uint) (*models.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.getErr[id]; ok {
		return nil, err
	}
	d, ok := f.deliveries[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDeliveryRepo) GetByUUID(uuid string) (*models.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deliveries {
		if d.UUID == uuid {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDeliveryRepo) GetByWebhookID(webhookID uint, offset, limit int) ([]models.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WebhookDelivery
	for _, d := range f.deliveries {
		if d.WebhookID == webhookID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) Update(d *models.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.deliveries[d.ID] = &cp
	return nil
}

func (f *fakeDeliveryRepo) FindDue(limit int) ([]models.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []models.WebhookDelivery
	for _, d := range f.deliveries {
		if len(out) >= limit {
			break
		}
		if d.Status != models.DeliveryStatusPending {
			continue
		}
		if d.Attempts == 0 || (d.NextRetryAt != nil && !d.NextRetryAt.After(now)) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDeliveryRepo) MarkForRetry(id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.deliveries[id]
	if !ok || d.Status != models.DeliveryStatusFailed {
		return false, nil
	}
	now := time.Now()
	d.Status = models.DeliveryStatusPending
	d.NextRetryAt = &now
	d.CompletedAt = nil
	return true, nil
}

func (f *fakeDeliveryRepo) CountByStatus(webhookID uint) (*repository.DeliveryStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.DeliveryStats{}
	for _, d := range f.deliveries {
		if d.WebhookID != webhookID {
			continue
		}
		stats.Total++
		switch d.Status {
		case models.DeliveryStatusSuccess:
			stats.Success++
		case models.DeliveryStatusFailed:
			stats.Failed++
		case models.DeliveryStatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}

func (f *fakeDeliveryRepo) Count() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.deliveries)), nil
}

func (f *fakeDeliveryRepo) CountCreatedBetween(start, end time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, d := range f.deliveries {
		if !d.CreatedAt.Before(start) && d.CreatedAt.Before(end) {
			count++
		}
	}
	return count, nil
}

func (f *fakeDeliveryRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, d := range f.deliveries {
		if d.CreatedAt.Before(cutoff) {
			delete(f.deliveries, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeSubscriptionCache is a map-backed SubscriptionCache.
type fakeSubscriptionCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSubscriptionCache() *fakeSubscriptionCache {
	return &fakeSubscriptionCache{values: make(map[string]string)}
}

func (f *fakeSubscriptionCache) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", gorm.ErrRecordNotFound
}

func (f *fakeSubscriptionCache) Set(key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSubscriptionCache) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

// newTestDispatcher wires a dispatcher over the fakes with no pacing and a
// fixed clock.
func newTestDispatcher(fw *fakeWebhookRepo, fd *fakeDeliveryRepo, now time.Time) *Dispatcher {
	return &Dispatcher{
		webhooks:   fw,
		deliveries: fd,
		client:     &http.Client{Timeout: 5 * time.Second},
		pacing:     0,
		now:        func() time.Time { return now },
	}
}
