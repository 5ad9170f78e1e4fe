package middleware

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/agora-community/agora_wallet/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	calls := 0
	app.Post("/transfer", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"attempt": calls})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, cleanup
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	req := httptest.NewRequest(fiber.MethodPost, "/transfer", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, resp.StatusCode)
	}
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	app, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	send := func() (int, string) {
		req := httptest.NewRequest(fiber.MethodPost, "/transfer", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "key-1")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode, string(body)
	}

	status1, body1 := send()
	if status1 != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", status1)
	}

	status2, body2 := send()
	if status2 != status1 || body2 != body1 {
		t.Fatalf("retry must replay the original response: %d %q vs %d %q", status1, body1, status2, body2)
	}
	if !strings.Contains(body2, `"attempt":1`) {
		t.Fatalf("handler ran twice: %s", body2)
	}
}

func TestIdempotencyKeysAreIndependent(t *testing.T) {
	app, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	for i, key := range []string{"key-a", "key-b"} {
		req := httptest.NewRequest(fiber.MethodPost, "/transfer", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, key)

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		want := fmt.Sprintf(`"attempt":%d`, i+1)
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %s, got %s", want, body)
		}
	}
}
