package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/device"
	"github.com/panadol94/tipsmega-api/internal/identity"
	"github.com/panadol94/tipsmega-api/internal/ledger"
	"github.com/panadol94/tipsmega-api/internal/referral"
)

type grantDeviceResponse struct {
	OK         bool   `json:"ok"`
	Granted    bool   `json:"granted"`
	BonusStars int64  `json:"bonusStars"`
	Stars      int64  `json:"stars"`
	Msg        string `json:"msg"`
}

func grantDevice(t *testing.T, app *fiber.App, deviceID string) grantDeviceResponse {
	t.Helper()
	body, err := json.Marshal(map[string]string{"deviceId": deviceID})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/grant-device", bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("grant-device status = %d", resp.StatusCode)
	}
	var out grantDeviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestGrantDeviceMessage(t *testing.T) {
	ctx := context.Background()
	ids := identity.NewMemoryRepository()
	devices := device.NewMemoryRepository()
	led := ledger.NewInMemory(ids, devices, referral.NewMemoryLog())

	if err := ids.Create(ctx, identity.Identity{Phone: "+60123456789", Username: "ali", GrantedTotal: 30}); err != nil {
		t.Fatalf("seed identity: %v", err)
	}
	if err := devices.Create(ctx, device.Device{DeviceID: "dev-m", Stars: 1}); err != nil {
		t.Fatalf("seed device: %v", err)
	}

	h := NewHandler(nil, nil, led, ids, "")
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("phone", "+60123456789")
		return c.Next()
	})
	app.Post("/grant-device", h.GrantDevice)

	out := grantDevice(t, app, "dev-m")
	if !out.OK || !out.Granted || out.BonusStars != 30 || out.Stars != 31 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Msg != "Claimed 30 new stars!" {
		t.Fatalf("msg = %q", out.Msg)
	}

	// Repeat claims have nothing pending and say so.
	again := grantDevice(t, app, "dev-m")
	if again.Granted || again.BonusStars != 0 || again.Stars != 31 {
		t.Fatalf("unexpected repeat response: %+v", again)
	}
	if again.Msg != "No new stars" {
		t.Fatalf("repeat msg = %q", again.Msg)
	}
}
