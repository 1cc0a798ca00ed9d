package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterHandlers attaches the operator API routes to the given router
// group. Authentication is applied by the caller.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Get("/stats", s.GetStats)

	router.Post("/shops/:shopID/webhooks", s.PostShopWebhook)
	router.Get("/shops/:shopID/webhooks", s.GetShopWebhooks)

	router.Get("/webhooks/:id", s.GetWebhook)
	router.Patch("/webhooks/:id", s.PatchWebhook)
	router.Delete("/webhooks/:id", s.DeleteWebhook)
	router.Get("/webhooks/:id/deliveries", s.GetWebhookDeliveries)
	router.Get("/webhooks/:id/stats", s.GetWebhookStats)

	router.Post("/deliveries/:id/retry", s.PostDeliveryRetry)
	router.Post("/maintenance/cleanup", s.PostCleanup)
}
