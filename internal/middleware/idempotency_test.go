package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/panadol94/tipsmega-api/internal/logging"
)

func setupIdempotentApp(t *testing.T) (*fiber.App, *atomic.Int64) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var hits atomic.Int64
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/claim", func(c *fiber.Ctx) error {
		hits.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "stars": hits.Load()})
	})
	return app, &hits
}

func postClaim(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/claim", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyHeaderOptional(t *testing.T) {
	app, hits := setupIdempotentApp(t)

	status1, _ := postClaim(t, app, "")
	status2, _ := postClaim(t, app, "")
	if status1 != fiber.StatusOK || status2 != fiber.StatusOK {
		t.Fatalf("statuses = %d, %d", status1, status2)
	}
	if hits.Load() != 2 {
		t.Fatalf("handler hits = %d, requests without a key must pass through", hits.Load())
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, hits := setupIdempotentApp(t)

	status1, body1 := postClaim(t, app, "abc123")
	status2, body2 := postClaim(t, app, "abc123")

	if status1 != fiber.StatusOK || status2 != fiber.StatusOK {
		t.Fatalf("statuses = %d, %d", status1, status2)
	}
	if body1 != body2 {
		t.Fatalf("replayed body %q differs from original %q", body2, body1)
	}
	if hits.Load() != 1 {
		t.Fatalf("handler hits = %d, the repeat must be served from the store", hits.Load())
	}
}
