package funding

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

func newWebhookApp() (*fiber.App, *Service, ledger.Store) {
	svc, store := newTestService()
	app := fiber.New()
	app.Post("/webhooks/provider", NewHandler(svc).ProviderWebhook)
	return app, svc, store
}

func TestProviderWebhookSettlesDeposit(t *testing.T) {
	app, svc, store := newWebhookApp()
	owner := uuid.NewString()

	topUp, err := svc.CreateTopUp(context.Background(), owner, 1500, "")
	if err != nil {
		t.Fatalf("create top-up: %v", err)
	}

	body := []byte(fmt.Sprintf(`{"reference":%q,"status":"succeeded"}`, topUp.Reference))
	req := httptest.NewRequest("POST", "/webhooks/provider", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(body))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	w, _ := store.WalletByOwner(context.Background(), owner)
	if w.Balance != 1500 {
		t.Fatalf("expected settled balance 1500, got %d", w.Balance)
	}
}

func TestProviderWebhookRejectsBadSignature(t *testing.T) {
	app, _, _ := newWebhookApp()

	body := []byte(`{"reference":"pr_x","status":"succeeded"}`)
	req := httptest.NewRequest("POST", "/webhooks/provider", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, "0000")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProviderWebhookUnknownReference(t *testing.T) {
	app, _, _ := newWebhookApp()

	body := []byte(`{"reference":"pr_missing","status":"succeeded"}`)
	req := httptest.NewRequest("POST", "/webhooks/provider", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, sign(body))

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
