package payments

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

var validate = validator.New()

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	RecipientHandle string `json:"recipient" validate:"required"`
	AmountCents     int64  `json:"amount_cents" validate:"required,gt=0"`
	Note            string `json:"note" validate:"max=280"`
}

// Transfer sends funds from the caller's wallet to another member.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		RequestorUserID: uid,
		RecipientHandle: req.RecipientHandle,
		Amount:          req.AmountCents,
		Note:            req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRecipientNotFound):
			return fiber.NewError(http.StatusNotFound, "recipient not found")
		case errors.Is(err, ledger.ErrSameWallet):
			return fiber.NewError(http.StatusBadRequest, "cannot transfer to yourself")
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient funds")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.DebitTransactionID,
		"transfer_group": res.TransferGroup,
		"balance_cents":  res.FromBalance,
		"completed_at":   res.CompletedAt,
	})
}
