package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/wallet"
)

// RegisterWalletRoutes wires the caller's wallet view.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Me)
	r.Get("/wallet/transactions", h.Transactions)
}
