package apiv1

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/webhooks"
)

type stubShopRepo struct {
	shops map[uint]*models.DiveShop
}

func (s *stubShopRepo) Create(shop *models.DiveShop) error { s.shops[shop.ID] = shop; return nil }
func (s *stubShopRepo) GetByID(id uint) (*models.DiveShop, error) {
	if shop, ok := s.shops[id]; ok {
		return shop, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubShopRepo) GetBySlug(slug string) (*models.DiveShop, error) {
	for _, shop := range s.shops {
		if shop.Slug == slug {
			return shop, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubShopRepo) Update(shop *models.DiveShop) error { s.shops[shop.ID] = shop; return nil }
func (s *stubShopRepo) Delete(id uint) error               { delete(s.shops, id); return nil }
func (s *stubShopRepo) Count() (int64, error)              { return int64(len(s.shops)), nil }

type stubWebhookRepo struct {
	webhooks map[uint]*models.Webhook
	nextID   uint
}

func (s *stubWebhookRepo) Create(w *models.Webhook) error {
	if w.ID == 0 {
		w.ID = s.nextID
		s.nextID++
	}
	s.webhooks[w.ID] = w
	return nil
}
func (s *stubWebhookRepo) GetByID(id uint) (*models.Webhook, error) {
	if w, ok := s.webhooks[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubWebhookRepo) GetByShopID(shopID uint) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, w := range s.webhooks {
		if w.ShopID == shopID {
			out = append(out, *w)
		}
	}
	return out, nil
}
func (s *stubWebhookRepo) GetActiveForEvent(shopID uint, event string) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, w := range s.webhooks {
		if w.ShopID == shopID && w.IsActive && w.SubscribesTo(event) {
			out = append(out, *w)
		}
	}
	return out, nil
}
func (s *stubWebhookRepo) Update(w *models.Webhook) error {
	cp := *w
	s.webhooks[w.ID] = &cp
	return nil
}
func (s *stubWebhookRepo) UpdateDeliverySummary(id uint, status string, at time.Time) error {
	return nil
}
func (s *stubWebhookRepo) Delete(id uint) error  { delete(s.webhooks, id); return nil }
func (s *stubWebhookRepo) Count() (int64, error) { return int64(len(s.webhooks)), nil }
func (s *stubWebhookRepo) CountActive() (int64, error) {
	var n int64
	for _, w := range s.webhooks {
		if w.IsActive {
			n++
		}
	}
	return n, nil
}

type stubDeliveryRepo struct {
	deliveries map[uint]*models.WebhookDelivery
	nextID     uint
}

func (s *stubDeliveryRepo) Create(d *models.WebhookDelivery) error {
	if d.ID == 0 {
		d.ID = s.nextID
		s.nextID++
	}
	s.deliveries[d.ID] = d
	return nil
}
func (s *stubDeliveryRepo) GetByID(id uint) (*models.WebhookDelivery, error) {
	if d, ok := s.deliveries[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubDeliveryRepo) GetByUUID(uuid string) (*models.WebhookDelivery, error) {
	for _, d := range s.deliveries {
		if d.UUID == uuid {
			cp := *d
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (s *stubDeliveryRepo) GetByWebhookID(webhookID uint, offset, limit int) ([]models.WebhookDelivery, error) {
	var out []models.WebhookDelivery
	for _, d := range s.deliveries {
		if d.WebhookID == webhookID {
			out = append(out, *d)
		}
	}
	return out, nil
}
func (s *stubDeliveryRepo) Update(d *models.WebhookDelivery) error {
	cp := *d
	s.deliveries[d.ID] = &cp
	return nil
}
func (s *stubDeliveryRepo) FindDue(limit int) ([]models.WebhookDelivery, error) { return nil, nil }
func (s *stubDeliveryRepo) MarkForRetry(id uint) (bool, error) {
	d, ok := s.deliveries[id]
	if !ok || d.Status != models.DeliveryStatusFailed {
		return false, nil
	}
	now := time.Now()
	d.Status = models.DeliveryStatusPending
	d.NextRetryAt = &now
	d.CompletedAt = nil
	return true, nil
}
func (s *stubDeliveryRepo) CountByStatus(webhookID uint) (*repository.DeliveryStats, error) {
	stats := &repository.DeliveryStats{}
	for _, d := range s.deliveries {
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
func (s *stubDeliveryRepo) Count() (int64, error) { return int64(len(s.deliveries)), nil }
func (s *stubDeliveryRepo) CountCreatedBetween(start, end time.Time) (int64, error) {
	return 0, nil
}
func (s *stubDeliveryRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	var deleted int64
	for id, d := range s.deliveries {
		if d.CreatedAt.Before(cutoff) {
			delete(s.deliveries, id)
			deleted++
		}
	}
	return deleted, nil
}

type testEnv struct {
	app        *fiber.App
	shops      *stubShopRepo
	webhooks   *stubWebhookRepo
	deliveries *stubDeliveryRepo
}

func newTestEnv() *testEnv {
	repos := &repository.Repositories{
		DiveShop: &stubShopRepo{shops: make(map[uint]*models.DiveShop)},
		Webhook:  &stubWebhookRepo{webhooks: make(map[uint]*models.Webhook), nextID: 1},
		Delivery: &stubDeliveryRepo{deliveries: make(map[uint]*models.WebhookDelivery), nextID: 1},
	}
	s := &APIServer{
		repos:      repos,
		dispatcher: webhooks.NewDispatcher(repos),
		emitter:    webhooks.NewEmitter(repos),
	}

	app := fiber.New()
	RegisterHandlers(app, s)

	return &testEnv{
		app:        app,
		shops:      repos.DiveShop.(*stubShopRepo),
		webhooks:   repos.Webhook.(*stubWebhookRepo),
		deliveries: repos.Delivery.(*stubDeliveryRepo),
	}
}

func (e *testEnv) addShop(id uint) {
	e.shops.shops[id] = &models.DiveShop{ID: id, Name: "Blue Reef Divers", Slug: "blue-reef", IsActive: true}
}

func (e *testEnv) addWebhook(t *testing.T, shopID uint, events ...string) *models.Webhook {
	t.Helper()
	w := &models.Webhook{ShopID: shopID, URL: "https://example.com/hook", Secret: "s", IsActive: true}
	require.NoError(t, w.SetEvents(events))
	require.NoError(t, e.webhooks.Create(w))
	return w
}

func decodeBody(t *testing.T, resp io.Reader) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp).Decode(&body))
	return body
}

func TestGetPing(t *testing.T) {
	e := newTestEnv()

	resp, err := e.app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, "pong", body["ping"])
}

func TestPostShopWebhook(t *testing.T) {
	e := newTestEnv()
	e.addShop(1)

	payload := `{"url":"https://example.com/hooks","events":["booking.created","site.published"]}`
	req := httptest.NewRequest("POST", "/shops/1/webhooks", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, "https://example.com/hooks", body["url"])
	assert.Equal(t, true, body["is_active"])
	assert.NotEmpty(t, body["secret"])
	assert.Len(t, body["events"], 2)
}

func TestPostShopWebhookUnknownShop(t *testing.T) {
	e := newTestEnv()

	payload := `{"url":"https://example.com/hooks","events":["booking.created"]}`
	req := httptest.NewRequest("POST", "/shops/42/webhooks", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostShopWebhookValidation(t *testing.T) {
	e := newTestEnv()
	e.addShop(1)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing url", `{"events":["booking.created"]}`},
		{"invalid url", `{"url":"not-a-url","events":["booking.created"]}`},
		{"no events", `{"url":"https://example.com/hooks","events":[]}`},
		{"unknown event", `{"url":"https://example.com/hooks","events":["booking.exploded"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/shops/1/webhooks", strings.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")

			resp, err := e.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetWebhook(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)

	resp, err := e.app.Test(httptest.NewRequest("GET", "/webhooks/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(w.ID), body["id"])
	// The signing secret never leaves the server after creation.
	_, exposed := body["secret"]
	assert.False(t, exposed)

	resp, err = e.app.Test(httptest.NewRequest("GET", "/webhooks/99", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPatchWebhook(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)

	req := httptest.NewRequest("PATCH", "/webhooks/1", strings.NewReader(`{"is_active":false,"events":["course.created"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := e.webhooks.GetByID(w.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []string{models.EventCourseCreated}, stored.EventList())
	// URL untouched by a partial update.
	assert.Equal(t, "https://example.com/hook", stored.URL)
}

func TestPatchWebhookUnknownEvent(t *testing.T) {
	e := newTestEnv()
	e.addWebhook(t, 1, models.EventBookingCreated)

	req := httptest.NewRequest("PATCH", "/webhooks/1", strings.NewReader(`{"events":["nope.nope"]}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDeleteWebhook(t *testing.T) {
	e := newTestEnv()
	e.addWebhook(t, 1, models.EventBookingCreated)

	resp, err := e.app.Test(httptest.NewRequest("DELETE", "/webhooks/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = e.app.Test(httptest.NewRequest("GET", "/webhooks/1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetWebhookDeliveries(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)
	require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{
		UUID: "u1", WebhookID: w.ID, Event: models.EventBookingCreated,
		Status: models.DeliveryStatusSuccess,
	}))

	resp, err := e.app.Test(httptest.NewRequest("GET", "/webhooks/1/deliveries", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["page"])
	assert.Equal(t, float64(50), body["limit"])
	assert.Len(t, body["deliveries"], 1)
}

func TestGetWebhookStats(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)
	for _, status := range []string{models.DeliveryStatusSuccess, models.DeliveryStatusFailed} {
		require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{WebhookID: w.ID, Status: status}))
	}

	resp, err := e.app.Test(httptest.NewRequest("GET", "/webhooks/1/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["success"])
	assert.Equal(t, float64(1), body["failed"])
}

func TestPostDeliveryRetry(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)
	now := time.Now()
	require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{
		WebhookID: w.ID, Status: models.DeliveryStatusFailed, Attempts: 5, CompletedAt: &now,
	}))
	require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{
		WebhookID: w.ID, Status: models.DeliveryStatusPending,
	}))

	resp, err := e.app.Test(httptest.NewRequest("POST", "/deliveries/1/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeBody(t, resp.Body)["retried"])

	// Pending deliveries cannot be manually retried.
	resp, err = e.app.Test(httptest.NewRequest("POST", "/deliveries/2/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp.Body)["retried"])

	resp, err = e.app.Test(httptest.NewRequest("POST", "/deliveries/99/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPostCleanup(t *testing.T) {
	e := newTestEnv()
	w := e.addWebhook(t, 1, models.EventBookingCreated)
	require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{
		WebhookID: w.ID, Status: models.DeliveryStatusSuccess,
		CreatedAt: time.Now().AddDate(0, 0, -60),
	}))
	require.NoError(t, e.deliveries.Create(&models.WebhookDelivery{
		WebhookID: w.ID, Status: models.DeliveryStatusSuccess,
		CreatedAt: time.Now(),
	}))

	resp, err := e.app.Test(httptest.NewRequest("POST", "/maintenance/cleanup?days=30", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp.Body)
	assert.Equal(t, float64(1), body["deleted"])
	assert.Equal(t, float64(30), body["days"])

	resp, err = e.app.Test(httptest.NewRequest("POST", "/maintenance/cleanup?days=-1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
