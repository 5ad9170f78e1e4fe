package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/payments"
)

// RegisterPaymentRoutes wires member-to-member transfer endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/payments/transfer", h.Transfer)
}
