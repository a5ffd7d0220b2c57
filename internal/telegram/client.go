// Package telegram talks to the Telegram Bot API: outbound messages,
// group membership checks and the inbound webhook that binds phones to
// chat accounts and carries operator commands.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client covering the calls this service makes.
type Client struct {
	http  *http.Client
	base  string
	token string
}

// NewClient builds a Bot API client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		http:  &http.Client{Timeout: 10 * time.Second},
		base:  apiBaseURL,
		token: token,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s failed: %s", method, envelope.Description)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendMessage delivers a text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	payload := map[string]any{"chat_id": chatID, "text": text}
	return c.call(ctx, "sendMessage", payload, nil)
}

// GetChatMember returns the membership status of a user inside a chat,
// e.g. "member", "administrator", "creator", "left", "kicked".
func (c *Client) GetChatMember(ctx context.Context, chatID, userID string) (string, error) {
	payload := map[string]any{"chat_id": chatID, "user_id": userID}
	var result struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "getChatMember", payload, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// Memberships answers group membership questions against the configured
// user and admin groups.
type Memberships struct {
	client       *Client
	userGroupID  string
	adminGroupID string
}

// NewMemberships builds the membership checker.
func NewMemberships(client *Client, userGroupID, adminGroupID string) *Memberships {
	return &Memberships{client: client, userGroupID: userGroupID, adminGroupID: adminGroupID}
}

// IsMember reports whether the chat account belongs to the user group.
func (m *Memberships) IsMember(ctx context.Context, channelID string) (bool, error) {
	status, err := m.client.GetChatMember(ctx, m.userGroupID, channelID)
	if err != nil {
		return false, err
	}
	switch status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}

// IsAdmin reports whether the chat account administers the admin group.
func (m *Memberships) IsAdmin(ctx context.Context, channelID string) (bool, error) {
	status, err := m.client.GetChatMember(ctx, m.adminGroupID, channelID)
	if err != nil {
		return false, err
	}
	return status == "administrator" || status == "creator", nil
}
