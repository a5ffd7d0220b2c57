package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/auth"
)

// RegisterAuthRoutes wires the account endpoints. The session middleware
// guards everything that acts on behalf of a logged-in account.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, session fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/request-otp", rateLimiter, h.RequestOTP)
	} else {
		group.Post("/request-otp", h.RequestOTP)
	}
	group.Post("/register", h.Register)
	group.Post("/login", h.Login)
	group.Post("/reset-password", h.ResetPassword)

	group.Post("/grant-device", session, h.GrantDevice)
	group.Get("/check-pending", session, h.CheckPending)
	group.Get("/me", session, h.Me)
}
