package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agora-community/agora_wallet/internal/auth"
	"github.com/agora-community/agora_wallet/internal/config"
	"github.com/agora-community/agora_wallet/internal/identity"
)

// JWTAuth validates bearer access tokens and rejects tokens issued before the
// user's current token version. The verified subject becomes the caller
// identity for every downstream handler.
func JWTAuth(cfg config.Config, repo identity.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims, err := auth.ParseToken(tokenStr, cfg.JWTSecret)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		user, err := repo.FindByID(c.UserContext(), claims.UserID)
		if err != nil || user.TokenVersion != claims.Version {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("user_id", user.ID)
		c.Locals("username", user.Username)
		c.Locals("role", user.Role)
		c.Locals("token_version", user.TokenVersion)
		return c.Next()
	}
}

// RequireAdmin gates a route group to admin members. Must run after JWTAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != identity.RoleAdmin {
			return fiber.NewError(http.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}
