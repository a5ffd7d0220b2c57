package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/binding"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/ledger"
	"github.com/panadol94/tipsmega-api/internal/phone"
)

// AdminChecker answers whether a chat account may run operator commands.
type AdminChecker interface {
	IsAdmin(ctx context.Context, channelID string) (bool, error)
}

// Webhook handles Bot API updates: contact shares bind phones to chat
// accounts, /start walks new users in, and /give /deduct are the operator
// ledger commands.
type Webhook struct {
	client    *Client
	bindings  binding.Repository
	ledger    ledger.Ledger
	admins    AdminChecker
	groupLink string
	logger    *slog.Logger
}

// NewWebhook wires the webhook handler.
func NewWebhook(client *Client, bindings binding.Repository, led ledger.Ledger,
	admins AdminChecker, groupLink string, logger *slog.Logger) *Webhook {
	return &Webhook{
		client:    client,
		bindings:  bindings,
		ledger:    led,
		admins:    admins,
		groupLink: groupLink,
		logger:    logger,
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	From    *user    `json:"from"`
	Chat    chat     `json:"chat"`
	Text    string   `json:"text"`
	Contact *contact `json:"contact"`
}

type user struct {
	ID int64 `json:"id"`
}

type chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type contact struct {
	PhoneNumber string `json:"phone_number"`
	UserID      int64  `json:"user_id"`
}

// Handle processes one update. It always answers 200 so the Bot API does
// not redeliver; failures are logged instead.
func (w *Webhook) Handle(c *fiber.Ctx) error {
	var u update
	if err := c.BodyParser(&u); err != nil {
		w.logger.Warn("webhook body rejected", "error", err)
		return c.SendStatus(http.StatusOK)
	}
	if u.Message == nil || u.Message.From == nil {
		return c.SendStatus(http.StatusOK)
	}

	msg := u.Message
	ctx := c.UserContext()
	from := strconv.FormatInt(msg.From.ID, 10)

	switch {
	case msg.Contact != nil && msg.Chat.Type == "private":
		w.handleContact(ctx, from, msg)
	case strings.HasPrefix(msg.Text, "/start"):
		w.handleStart(ctx, from, msg)
	case strings.HasPrefix(msg.Text, "/give ") || strings.HasPrefix(msg.Text, "/deduct "):
		w.handleAdjust(ctx, from, msg)
	}
	return c.SendStatus(http.StatusOK)
}

func (w *Webhook) handleContact(ctx context.Context, from string, msg *message) {
	// Only a self-shared contact binds; forwarding someone else's card does not.
	if msg.Contact.UserID != msg.From.ID {
		w.reply(ctx, msg.Chat.ID, "Sila kongsi nombor telefon anda sendiri.")
		return
	}
	canonical, err := phone.Normalize(msg.Contact.PhoneNumber)
	if err != nil {
		w.reply(ctx, msg.Chat.ID, "Nombor telefon tidak sah.")
		return
	}
	err = w.bindings.Upsert(ctx, binding.Binding{ChannelID: from, Phone: canonical, CreatedAt: time.Now().UTC()})
	if err != nil {
		w.logger.Error("bind failed", "channel_id", from, "error", err)
		w.reply(ctx, msg.Chat.ID, "Ralat sistem, cuba lagi.")
		return
	}
	w.logger.Info("phone bound", "channel_id", from, "phone", canonical)
	w.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ Nombor %s telah disahkan. Anda boleh minta OTP sekarang.", canonical))
}

func (w *Webhook) handleStart(ctx context.Context, from string, msg *message) {
	if msg.Chat.Type != "private" {
		return
	}
	w.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"Selamat datang ke TipsMega888!\n\n1. Sertai group: %s\n2. Kongsi nombor telefon anda di sini untuk pengesahan.", w.groupLink))
}

func (w *Webhook) handleAdjust(ctx context.Context, from string, msg *message) {
	admin, err := w.admins.IsAdmin(ctx, from)
	if err != nil {
		w.logger.Error("admin check failed", "channel_id", from, "error", err)
		return
	}
	if !admin {
		w.reply(ctx, msg.Chat.ID, "Arahan ini untuk admin sahaja.")
		return
	}

	fields := strings.Fields(msg.Text)
	if len(fields) != 3 {
		w.reply(ctx, msg.Chat.ID, "Format: /give <username> <bintang> atau /deduct <username> <bintang>")
		return
	}
	username := fields[1]
	amount, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || amount <= 0 {
		w.reply(ctx, msg.Chat.ID, "Jumlah bintang tidak sah.")
		return
	}

	delta := amount
	if fields[0] == "/deduct" {
		delta = -amount
	}

	total, err := w.ledger.Adjust(ctx, username, delta)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			w.reply(ctx, msg.Chat.ID, fmt.Sprintf("Username %q tidak dijumpai.", username))
			return
		}
		w.logger.Error("ledger adjust failed", "username", username, "delta", delta, "error", err)
		w.reply(ctx, msg.Chat.ID, "Ralat sistem, cuba lagi.")
		return
	}

	w.logger.Info("ledger adjusted", "username", username, "delta", delta, "total", total, "by", from)
	w.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ %s: %+d bintang. Jumlah bonus kini %d.", username, delta, total))
}

func (w *Webhook) reply(ctx context.Context, chatID int64, text string) {
	err := w.client.SendMessage(ctx, strconv.FormatInt(chatID, 10), text)
	if err != nil {
		w.logger.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}
