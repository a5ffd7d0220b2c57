package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/panadol94/tipsmega-api/internal/auth"
	"github.com/panadol94/tipsmega-api/internal/logging"
)

func setupSessionApp(t *testing.T) (*fiber.App, *auth.Service) {
	t.Helper()
	accounts := auth.NewService(nil, nil, nil, "test-secret", time.Hour, logging.Discard())

	app := fiber.New()
	app.Get("/me", SessionAuth(accounts), func(c *fiber.Ctx) error {
		phone, _ := c.Locals("phone").(string)
		return c.JSON(fiber.Map{"phone": phone})
	})
	return app, accounts
}

func TestSessionAuth(t *testing.T) {
	app, _ := setupSessionApp(t)

	token, err := auth.Sign(map[string]any{"phone": "+60123456789", "iat": time.Now().Unix()}, []byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSessionAuthRejects(t *testing.T) {
	app, _ := setupSessionApp(t)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage token":  "Bearer not-a-token",
	}
	for name, header := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, resp.StatusCode)
		}
	}
}

func TestSessionAuthExpiredToken(t *testing.T) {
	app, _ := setupSessionApp(t)

	stale, err := auth.Sign(map[string]any{"phone": "+60123456789", "iat": time.Now().Add(-2 * time.Hour).Unix()}, []byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+stale)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}
