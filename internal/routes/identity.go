package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/identity"
)

// RegisterIdentityRoutes wires member registration. The wallet itself is
// provisioned lazily on first balance access, not at signup.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{
			Email:    req.Email,
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if logger != nil {
			logger.Info("member registered",
				slog.String("user_id", user.ID),
				slog.String("username", user.Username),
			)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"user_id":  user.ID,
			"email":    user.Email,
			"username": user.Username,
			"role":     user.Role,
		})
	})
}
