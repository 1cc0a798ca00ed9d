package apiv1

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/DiveDeskApp/DiveDesk/app/models"
	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/statistics"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/webhooks"
)

// APIServer exposes the operator surface of the webhook delivery engine:
// webhook registration, delivery history, manual retry, per-webhook stats
// and retention cleanup.
type APIServer struct {
	repos      *repository.Repositories
	dispatcher *webhooks.Dispatcher
	emitter    *webhooks.Emitter
}

// NewAPIServer creates a new API server instance over the global repositories.
func NewAPIServer() *APIServer {
	repos := repository.GetGlobalRepositories()
	return &APIServer{
		repos:      repos,
		dispatcher: webhooks.NewDispatcher(repos),
		emitter:    webhooks.NewEmitter(repos),
	}
}

// Pong is the ping endpoint response body.
type Pong struct {
	Ping string `json:"ping"`
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// GetStats returns platform-wide delivery statistics.
func (s *APIServer) GetStats(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(statistics.GetStatisticsData())
}

// CreateWebhookRequest is the payload for registering a webhook.
type CreateWebhookRequest struct {
	URL      string   `json:"url" validate:"required,url,max=500"`
	Events   []string `json:"events" validate:"required,min=1"`
	IsActive *bool    `json:"is_active"`
}

// PostShopWebhook registers a new webhook for a shop. The signing secret is
// generated server-side and returned only in this response.
func (s *APIServer) PostShopWebhook(c *fiber.Ctx) error {
	shopID, err := parseUintParam(c, "shopID")
	if err != nil {
		return badRequest(c, "invalid shop id")
	}

	if _, err := s.repos.DiveShop.GetByID(shopID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "shop not found")
		}
		return internalError(c, err)
	}

	var req CreateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if unknown := unknownEvents(req.Events); len(unknown) > 0 {
		return badRequest(c, "unknown events: "+strings.Join(unknown, ", "))
	}

	webhook := &models.Webhook{
		ShopID:   shopID,
		URL:      req.URL,
		IsActive: req.IsActive == nil || *req.IsActive,
	}
	if err := webhook.SetEvents(req.Events); err != nil {
		return internalError(c, err)
	}
	if err := webhook.GenerateSecret(); err != nil {
		return internalError(c, err)
	}
	if err := webhook.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	if err := s.repos.Webhook.Create(webhook); err != nil {
		return internalError(c, err)
	}
	s.emitter.InvalidateSubscriptions(shopID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":        webhook.ID,
		"shop_id":   webhook.ShopID,
		"url":       webhook.URL,
		"events":    webhook.EventList(),
		"is_active": webhook.IsActive,
		"secret":    webhook.Secret,
	})
}

// GetShopWebhooks lists a shop's webhooks.
func (s *APIServer) GetShopWebhooks(c *fiber.Ctx) error {
	shopID, err := parseUintParam(c, "shopID")
	if err != nil {
		return badRequest(c, "invalid shop id")
	}

	hooks, err := s.repos.Webhook.GetByShopID(shopID)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"webhooks": hooks})
}

// GetWebhook returns a single webhook by ID.
func (s *APIServer) GetWebhook(c *fiber.Ctx) error {
	webhook, err := s.loadWebhook(c)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(webhook)
}

// UpdateWebhookRequest is the payload for changing a webhook. Absent fields
// are left as they are.
type UpdateWebhookRequest struct {
	URL      *string  `json:"url" validate:"omitempty,url,max=500"`
	Events   []string `json:"events"`
	IsActive *bool    `json:"is_active"`
}

// PatchWebhook updates URL, subscription set or active flag of a webhook.
func (s *APIServer) PatchWebhook(c *fiber.Ctx) error {
	webhook, err := s.loadWebhook(c)
	if err != nil {
		return err
	}

	var req UpdateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validator.New().Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.URL != nil {
		webhook.URL = *req.URL
	}
	if req.Events != nil {
		if unknown := unknownEvents(req.Events); len(unknown) > 0 {
			return badRequest(c, "unknown events: "+strings.Join(unknown, ", "))
		}
		if err := webhook.SetEvents(req.Events); err != nil {
			return internalError(c, err)
		}
	}
	if req.IsActive != nil {
		webhook.IsActive = *req.IsActive
	}

	if err := webhook.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if err := s.repos.Webhook.Update(webhook); err != nil {
		return internalError(c, err)
	}
	s.emitter.InvalidateSubscriptions(webhook.ShopID)

	return c.Status(fiber.StatusOK).JSON(webhook)
}

// DeleteWebhook removes a webhook subscription. Its delivery history stays
// until retention cleanup removes it.
func (s *APIServer) DeleteWebhook(c *fiber.Ctx) error {
	webhook, err := s.loadWebhook(c)
	if err != nil {
		return err
	}

	if err := s.repos.Webhook.Delete(webhook.ID); err != nil {
		return internalError(c, err)
	}
	s.emitter.InvalidateSubscriptions(webhook.ShopID)

	return c.SendStatus(fiber.StatusNoContent)
}

// GetWebhookDeliveries returns a page of a webhook's delivery history.
func (s *APIServer) GetWebhookDeliveries(c *fiber.Ctx) error {
	webhook, err := s.loadWebhook(c)
	if err != nil {
		return err
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	deliveries, err := s.repos.Delivery.GetByWebhookID(webhook.ID, (page-1)*limit, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"deliveries": deliveries,
		"page":       page,
		"limit":      limit,
	})
}

// GetWebhookStats returns the webhook's delivery counts by status.
func (s *APIServer) GetWebhookStats(c *fiber.Ctx) error {
	webhook, err := s.loadWebhook(c)
	if err != nil {
		return err
	}

	stats, err := s.dispatcher.DeliveryStats(webhook.ID)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

// PostDeliveryRetry queues a failed delivery for an immediate retry. Retrying
// a delivery in any other status is a no-op reported as retried=false.
func (s *APIServer) PostDeliveryRetry(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid delivery id")
	}

	if _, err := s.repos.Delivery.GetByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound(c, "delivery not found")
		}
		return internalError(c, err)
	}

	retried, err := s.dispatcher.RetryDelivery(id)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"retried": retried})
}

// PostCleanup deletes deliveries older than the retention window and reports
// how many were removed.
func (s *APIServer) PostCleanup(c *fiber.Ctx) error {
	days := c.QueryInt("days", webhooks.DefaultRetentionDays)
	if days < 1 {
		return badRequest(c, "days must be a positive number")
	}

	deleted, err := s.dispatcher.CleanupDeliveries(days)
	if err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"deleted": deleted, "days": days})
}

// loadWebhook resolves the :id route param to a webhook or writes the error
// response itself.
func (s *APIServer) loadWebhook(c *fiber.Ctx) (*models.Webhook, error) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return nil, badRequest(c, "invalid webhook id")
	}

	webhook, err := s.repos.Webhook.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(c, "webhook not found")
		}
		return nil, internalError(c, err)
	}
	return webhook, nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func unknownEvents(events []string) []string {
	var unknown []string
	for _, event := range events {
		known := false
		for _, k := range models.KnownEvents {
			if event == k {
				known = true
				break
			}
		}
		if !known {
			unknown = append(unknown, event)
		}
	}
	return unknown
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": message})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
}
