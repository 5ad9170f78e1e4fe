package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/funding"
)

// RegisterFundingRoutes wires member top-up and withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/wallet/topups", h.CreateTopUp)
	r.Post("/wallet/withdrawals", h.RequestWithdrawal)
}

// RegisterAdminRoutes wires the withdrawal review queue.
func RegisterAdminRoutes(r fiber.Router, h *funding.Handler) {
	r.Get("/withdrawals", h.ListPendingWithdrawals)
	r.Post("/withdrawals/:id/approve", h.ApproveWithdrawal)
	r.Post("/withdrawals/:id/deny", h.DenyWithdrawal)
}

// RegisterWebhookRoutes wires the provider settlement callback at the app
// root, outside both the JWT and idempotency layers.
func RegisterWebhookRoutes(app *fiber.App, h *funding.Handler) {
	app.Post("/webhooks/provider", h.ProviderWebhook)
}
