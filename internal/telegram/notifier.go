package telegram

import (
	"context"

	"github.com/panadol94/tipsmega-api/internal/notify"
)

// Notifier delivers out-of-band messages (OTP codes among them) over the
// Bot API.
type Notifier struct {
	client *Client
}

// NewNotifier builds a Bot API backed notifier.
func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

// Send implements notify.Notifier.
func (n *Notifier) Send(ctx context.Context, msg notify.Message) error {
	return n.client.SendMessage(ctx, msg.ChannelID, msg.Body)
}
