package funding

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "X-Provider-Signature"

var validate = validator.New()

// Handler exposes funding endpoints: member top-ups and withdrawals, the
// admin review queue, and the provider webhook.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type topUpRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Note        string `json:"note" validate:"max=280"`
}

// CreateTopUp opens a checkout session and records the pending deposit.
func (h *Handler) CreateTopUp(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	topUp, err := h.service.CreateTopUp(c.UserContext(), uid, req.AmountCents, req.Note)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			return fiber.NewError(http.StatusBadRequest, "amount must be positive")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": topUp.TransactionID,
		"checkout_url":   topUp.CheckoutURL,
		"client_secret":  topUp.ClientSecret,
		"amount_cents":   topUp.AmountCents,
	})
}

type withdrawalRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Note        string `json:"note" validate:"max=280"`
}

// RequestWithdrawal debits the caller's wallet and queues the withdrawal.
func (h *Handler) RequestWithdrawal(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.RequestWithdrawal(c.UserContext(), uid, req.AmountCents, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
		"amount_cents":   tx.Amount,
	})
}

// ListPendingWithdrawals returns the admin review queue, oldest first.
func (h *Handler) ListPendingWithdrawals(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	txs, err := h.service.PendingWithdrawals(c.UserContext(), limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	items := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		items = append(items, fiber.Map{
			"transaction_id": tx.ID,
			"wallet_id":      tx.WalletID,
			"amount_cents":   tx.Amount,
			"note":           tx.Note,
			"created_at":     tx.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"withdrawals": items})
}

// ApproveWithdrawal clears a reviewed withdrawal.
func (h *Handler) ApproveWithdrawal(c *fiber.Ctx) error {
	tx, err := h.service.ApproveWithdrawal(c.UserContext(), c.Params("id"))
	if err != nil {
		return reviewError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
	})
}

type denyRequest struct {
	Reason string `json:"reason" validate:"required,max=280"`
}

// DenyWithdrawal denies a reviewed withdrawal and refunds the held funds.
func (h *Handler) DenyWithdrawal(c *fiber.Ctx) error {
	var req denyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	tx, err := h.service.DenyWithdrawal(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return reviewError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transaction_id": tx.ID,
		"status":         string(tx.Status),
		"reason":         tx.Reason,
	})
}

// ProviderWebhook authenticates and applies a settlement notification. The
// provider retries until it sees a 2xx, so replays must succeed quietly.
func (h *Handler) ProviderWebhook(c *fiber.Ctx) error {
	err := h.service.HandleNotification(c.UserContext(), c.Body(), c.Get(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			return fiber.NewError(http.StatusUnauthorized, "invalid signature")
		case errors.Is(err, ledger.ErrUnknownTransaction):
			return fiber.NewError(http.StatusNotFound, "unknown reference")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"received": true})
}

func reviewError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrUnknownTransaction):
		return fiber.NewError(http.StatusNotFound, "unknown transaction")
	case errors.Is(err, ErrNotWithdrawal):
		return fiber.NewError(http.StatusConflict, "transaction is not a withdrawal")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
