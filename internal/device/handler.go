package device

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes device quota HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a device HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type initRequest struct {
	DeviceID string `json:"deviceId"`
}

type scanRequest struct {
	DeviceID string `json:"deviceId"`
	TargetID string `json:"megaId"`
}

// Init hands a new device its free star or applies the daily top-up.
func (h *Handler) Init(c *fiber.Ctx) error {
	var req initRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.DeviceID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing deviceId")
	}
	res, err := h.service.Init(c.UserContext(), req.DeviceID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"deviceId": res.DeviceID,
		"stars":    res.Stars,
		"isNew":    res.IsNew,
	})
}

// Scan consumes one star and returns the remaining balance with a score.
func (h *Handler) Scan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.DeviceID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing deviceId")
	}
	if req.TargetID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing megaId")
	}
	res, err := h.service.Scan(c.UserContext(), req.DeviceID, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoStars):
			return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{"error": "no stars", "stars": 0})
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "device not initialized")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"ok":         true,
		"overallRtp": res.Score,
		"stars":      res.Stars,
	})
}
