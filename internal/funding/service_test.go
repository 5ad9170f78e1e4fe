package funding

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

const testSecret = "whsec_test"

func newTestService() (*Service, ledger.Store) {
	store := ledger.NewInMemory()
	return NewService(store, StubProvider{}, nil, testSecret, nil), store
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestTopUpLifecycle(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	owner := uuid.NewString()

	topUp, err := svc.CreateTopUp(ctx, owner, 2500, "first top-up")
	if err != nil {
		t.Fatalf("create top-up: %v", err)
	}
	if topUp.Reference == "" || topUp.CheckoutURL == "" || topUp.ClientSecret == "" {
		t.Fatalf("incomplete checkout session: %+v", topUp)
	}

	w, err := store.WalletByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != 0 {
		t.Fatalf("pending deposit must not credit the wallet, balance %d", w.Balance)
	}

	body := []byte(fmt.Sprintf(`{"reference":%q,"status":"succeeded"}`, topUp.Reference))
	if err := svc.HandleNotification(ctx, body, sign(body)); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	balance, _ := store.Balance(ctx, w.ID)
	if balance != 2500 {
		t.Fatalf("expected balance 2500 after settlement, got %d", balance)
	}

	// Provider retry of the same reference must not double-credit.
	if err := svc.HandleNotification(ctx, body, sign(body)); err != nil {
		t.Fatalf("replayed notification: %v", err)
	}
	balance, _ = store.Balance(ctx, w.ID)
	if balance != 2500 {
		t.Fatalf("replay double-credited, balance %d", balance)
	}
}

func TestFailedTopUpDenied(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	owner := uuid.NewString()

	topUp, err := svc.CreateTopUp(ctx, owner, 1000, "")
	if err != nil {
		t.Fatalf("create top-up: %v", err)
	}

	body := []byte(fmt.Sprintf(`{"reference":%q,"status":"failed","reason":"card_declined"}`, topUp.Reference))
	if err := svc.HandleNotification(ctx, body, sign(body)); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	tx, err := store.GetTransaction(ctx, topUp.TransactionID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if tx.Status != ledger.StatusDenied || tx.Reason != "card_declined" {
		t.Fatalf("expected denied with reason, got %s %q", tx.Status, tx.Reason)
	}

	w, _ := store.WalletByOwner(ctx, owner)
	if w.Balance != 0 {
		t.Fatalf("failed deposit must not credit, balance %d", w.Balance)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _ := newTestService()
	body := []byte(`{"reference":"pr_x","status":"succeeded"}`)

	if err := svc.HandleNotification(context.Background(), body, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if err := svc.HandleNotification(context.Background(), body, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing header, got %v", err)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	svc, _ := newTestService()
	body := []byte(`not json`)

	if err := svc.HandleNotification(context.Background(), body, sign(body)); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for bad payload, got %v", err)
	}
}

func TestWebhookUnknownReference(t *testing.T) {
	svc, _ := newTestService()
	body := []byte(`{"reference":"pr_missing","status":"succeeded"}`)

	if err := svc.HandleNotification(context.Background(), body, sign(body)); !errors.Is(err, ledger.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestWithdrawalReview(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	owner := uuid.NewString()

	w, _ := store.GetOrCreateWallet(ctx, owner)
	ledger.SeedBalance(store, w.ID, 1000)

	tx, err := svc.RequestWithdrawal(ctx, owner, 600, "rent")
	if err != nil {
		t.Fatalf("request withdrawal: %v", err)
	}
	balance, _ := store.Balance(ctx, w.ID)
	if balance != 400 {
		t.Fatalf("withdrawal must debit immediately, balance %d", balance)
	}

	pending, err := svc.PendingWithdrawals(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != tx.ID {
		t.Fatalf("expected one pending withdrawal, got %v %v", pending, err)
	}

	denied, err := svc.DenyWithdrawal(ctx, tx.ID, "kyc incomplete")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != ledger.StatusDenied {
		t.Fatalf("expected denied, got %s", denied.Status)
	}
	balance, _ = store.Balance(ctx, w.ID)
	if balance != 1000 {
		t.Fatalf("denial must refund, balance %d", balance)
	}

	// A second decision on a terminal withdrawal changes nothing.
	if _, err := svc.ApproveWithdrawal(ctx, tx.ID); err != nil {
		t.Fatalf("approve after deny: %v", err)
	}
	got, _ := store.GetTransaction(ctx, tx.ID)
	if got.Status != ledger.StatusDenied {
		t.Fatalf("terminal state must be frozen, got %s", got.Status)
	}
	balance, _ = store.Balance(ctx, w.ID)
	if balance != 1000 {
		t.Fatalf("late approval must not move funds, balance %d", balance)
	}
}

func TestReviewRejectsNonWithdrawal(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	owner := uuid.NewString()

	topUp, err := svc.CreateTopUp(ctx, owner, 500, "")
	if err != nil {
		t.Fatalf("create top-up: %v", err)
	}
	if _, err := svc.ApproveWithdrawal(ctx, topUp.TransactionID); !errors.Is(err, ErrNotWithdrawal) {
		t.Fatalf("expected ErrNotWithdrawal, got %v", err)
	}
	_, err = svc.DenyWithdrawal(ctx, topUp.TransactionID, "nope")
	if !errors.Is(err, ErrNotWithdrawal) {
		t.Fatalf("expected ErrNotWithdrawal, got %v", err)
	}
	if _, err := store.FindByProviderRef(ctx, topUp.Reference); err != nil {
		t.Fatalf("deposit must survive bad review attempts: %v", err)
	}
}
