package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/device"
)

// RegisterDeviceRoutes wires the anonymous device quota endpoints.
func RegisterDeviceRoutes(r fiber.Router, h *device.Handler) {
	r.Post("/init", h.Init)
	r.Post("/scan", h.Scan)
}
