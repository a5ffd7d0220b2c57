package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/panadol94/tipsmega-api/internal/config"
	"github.com/panadol94/tipsmega-api/internal/logging"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	cfg := config.Config{
		AppName:    "test",
		AppEnv:     "dev",
		AuthSecret: "test-secret",
		Timezone:   "Asia/Kuala_Lumpur",
		DailyLimit: 5,
	}

	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, DB: nil, Cache: cache, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test %s: %v", path, err)
	}
	return resp
}

func TestSetupWiresCoreRoutes(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	// Device lifecycle over HTTP.
	resp = postJSON(t, app, "/api/init", map[string]string{"deviceId": "dev-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d", resp.StatusCode)
	}
	var initBody struct {
		Stars int64 `json:"stars"`
		IsNew bool  `json:"isNew"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&initBody); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if initBody.Stars != 1 || !initBody.IsNew {
		t.Fatalf("init body = %+v", initBody)
	}

	resp = postJSON(t, app, "/api/scan", map[string]string{"deviceId": "dev-1", "megaId": "m-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scan status = %d", resp.StatusCode)
	}

	// The only star is spent.
	resp = postJSON(t, app, "/api/scan", map[string]string{"deviceId": "dev-1", "megaId": "m-1"})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("second scan status = %d, want 402", resp.StatusCode)
	}
}

func TestSetupGuardsProtectedRoutes(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me status = %d, want 401", resp.StatusCode)
	}

	// An unbound phone cannot request a code.
	resp = postJSON(t, app, "/api/auth/request-otp", map[string]string{"phone": "0123456789"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("request-otp status = %d, want 404", resp.StatusCode)
	}
}

func TestSetupRunsWithoutCache(t *testing.T) {
	cfg := config.Config{
		AppName:    "test",
		AppEnv:     "dev",
		AuthSecret: "test-secret",
		Timezone:   "Asia/Kuala_Lumpur",
		DailyLimit: 5,
	}
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	resp := postJSON(t, app, "/api/init", map[string]string{"deviceId": "dev-nc"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d", resp.StatusCode)
	}

	// The challenge store must work without Redis: an unbound phone reaches
	// the binding check instead of crashing in the store.
	resp = postJSON(t, app, "/api/auth/request-otp", map[string]string{"phone": "0123456789"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("request-otp status = %d, want 404", resp.StatusCode)
	}
}

func TestSetupRejectsMissingInfraOutsideDev(t *testing.T) {
	cfg := config.Config{AppEnv: "production", AuthSecret: "s"}
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error without database and redis in production")
	}
}
