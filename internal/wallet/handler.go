package wallet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transactionResponse struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	AmountCents   int64  `json:"amount_cents"`
	Note          string `json:"note,omitempty"`
	Status        string `json:"status"`
	TransferGroup string `json:"transfer_group,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	SettledAt     string `json:"settled_at,omitempty"`
}

// Me returns the authenticated caller's wallet and balance.
func (h *Handler) Me(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	balance, err := h.service.Balance(c.UserContext(), uid)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id":     balance.WalletID,
		"balance_cents": balance.Amount,
		"currency":      balance.Currency,
		"as_of":         balance.AsOf,
	})
}

// Transactions returns the caller's transaction history, newest first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	txs, err := h.service.Transactions(c.UserContext(), uid, limit, offset)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		items = append(items, toTransactionResponse(t))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": items})
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:            t.ID,
		Kind:          string(t.Kind),
		AmountCents:   t.Amount,
		Note:          t.Note,
		Status:        string(t.Status),
		TransferGroup: t.TransferGroup,
		Reason:        t.Reason,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339Nano),
	}
	if !t.SettledAt.IsZero() {
		resp.SettledAt = t.SettledAt.Format(time.RFC3339Nano)
	}
	return resp
}
