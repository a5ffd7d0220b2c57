package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/auth"
)

// SessionAuth validates the bearer session token and stores the canonical
// phone under Locals("phone") for downstream handlers.
func SessionAuth(accounts *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		phone, err := accounts.Authenticate(token)
		if err != nil {
			if err == auth.ErrTokenExpired {
				return fiber.NewError(http.StatusUnauthorized, "token expired")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals("phone", phone)
		return c.Next()
	}
}
