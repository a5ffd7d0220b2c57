package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/telegram"
)

// RegisterTelegramRoutes wires the Bot API webhook. It sits outside the
// /api group because Telegram calls it directly.
func RegisterTelegramRoutes(app *fiber.App, hook *telegram.Webhook) {
	app.Post("/telegram/webhook", hook.Handle)
}
