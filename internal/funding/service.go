package funding

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agora-community/agora_wallet/internal/ledger"
	"github.com/agora-community/agora_wallet/internal/notification"
)

var (
	// ErrInvalidSignature indicates a webhook that failed HMAC verification
	// or carried an unreadable payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotWithdrawal indicates a review decision aimed at a transaction
	// that is not a withdrawal.
	ErrNotWithdrawal = errors.New("transaction is not a withdrawal")
)

// Service handles money entering and leaving the system: provider-backed
// top-ups, reviewed withdrawals, and webhook reconciliation.
type Service struct {
	store         ledger.Store
	provider      Provider
	notifier      notification.Notifier
	webhookSecret []byte
	logger        *slog.Logger
}

// NewService constructs a funding service.
func NewService(store ledger.Store, provider Provider, notifier notification.Notifier, webhookSecret string, logger *slog.Logger) *Service {
	return &Service{
		store:         store,
		provider:      provider,
		notifier:      notifier,
		webhookSecret: []byte(webhookSecret),
		logger:        logger,
	}
}

// TopUp is the response to a top-up initiation: a pending deposit plus the
// provider session the client completes payment against.
type TopUp struct {
	TransactionID string
	Reference     string
	CheckoutURL   string
	ClientSecret  string
	AmountCents   int64
}

// CreateTopUp opens a provider checkout session and records a pending deposit
// carrying the provider reference. No balance changes until settlement.
func (s *Service) CreateTopUp(ctx context.Context, ownerID string, amount int64, note string) (TopUp, error) {
	if amount <= 0 {
		return TopUp{}, ledger.ErrInvalidAmount
	}

	wallet, err := s.store.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return TopUp{}, err
	}

	session, err := s.provider.CreateCheckout(ctx, CheckoutInput{
		WalletID: wallet.ID,
		Amount:   amount,
		Currency: wallet.Currency,
	})
	if err != nil {
		return TopUp{}, fmt.Errorf("create checkout: %w", err)
	}

	tx, err := s.store.CreateDeposit(ctx, wallet.ID, amount, note, session.Reference)
	if err != nil {
		return TopUp{}, err
	}

	return TopUp{
		TransactionID: tx.ID,
		Reference:     session.Reference,
		CheckoutURL:   session.CheckoutURL,
		ClientSecret:  session.ClientSecret,
		AmountCents:   amount,
	}, nil
}

// RequestWithdrawal debits the caller's wallet and queues the withdrawal for
// review. The debit happens immediately; denial refunds it.
func (s *Service) RequestWithdrawal(ctx context.Context, ownerID string, amount int64, note string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}
	wallet, err := s.store.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.store.RequestWithdrawal(ctx, wallet.ID, amount, note)
}

// PendingWithdrawals lists withdrawals awaiting review, oldest first.
func (s *Service) PendingWithdrawals(ctx context.Context, limit int) ([]ledger.Transaction, error) {
	return s.store.ListPendingWithdrawals(ctx, limit)
}

// ApproveWithdrawal marks a reviewed withdrawal as cleared. The funds were
// already debited at request time, so settlement only freezes the record.
func (s *Service) ApproveWithdrawal(ctx context.Context, txID string) (ledger.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Kind != ledger.KindWithdrawal {
		return ledger.Transaction{}, ErrNotWithdrawal
	}
	settled, err := s.store.Settle(ctx, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.notify(ctx, notification.KindWithdrawalSettled, settled, "Your withdrawal was approved")
	return settled, nil
}

// DenyWithdrawal denies a reviewed withdrawal and refunds the held funds.
func (s *Service) DenyWithdrawal(ctx context.Context, txID, reason string) (ledger.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Kind != ledger.KindWithdrawal {
		return ledger.Transaction{}, ErrNotWithdrawal
	}
	denied, err := s.store.Deny(ctx, txID, reason)
	if err != nil {
		return ledger.Transaction{}, err
	}
	s.notify(ctx, notification.KindWithdrawalDenied, denied, "Your withdrawal was denied")
	return denied, nil
}

// providerNotification is the settlement payload posted by the provider.
type providerNotification struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// VerifySignature checks the hex HMAC-SHA256 of the raw body against the
// shared webhook secret in constant time.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	if len(s.webhookSecret) == 0 || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, s.webhookSecret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleNotification authenticates and applies a provider settlement webhook.
// Replays of already reconciled references are acknowledged without effect.
func (s *Service) HandleNotification(ctx context.Context, body []byte, signature string) error {
	if !s.VerifySignature(body, signature) {
		return ErrInvalidSignature
	}

	var note providerNotification
	if err := json.Unmarshal(body, &note); err != nil || note.Reference == "" {
		return ErrInvalidSignature
	}

	return s.Reconcile(ctx, note.Reference, note.Status, note.Reason)
}

// Reconcile applies a provider outcome to the deposit matching the reference.
// A terminal transaction is left untouched so the reference settles at most
// once.
func (s *Service) Reconcile(ctx context.Context, reference, status, reason string) error {
	tx, err := s.store.FindByProviderRef(ctx, reference)
	if err != nil {
		return err
	}
	if tx.Status.Terminal() {
		if s.logger != nil {
			s.logger.Info("duplicate provider notification ignored", "reference", reference, "status", string(tx.Status))
		}
		return nil
	}

	switch status {
	case "succeeded":
		settled, err := s.store.Settle(ctx, tx.ID)
		if err != nil {
			return err
		}
		s.notify(ctx, notification.KindDepositCleared, settled, "Your top-up has cleared")
		return nil
	case "failed", "canceled":
		if reason == "" {
			reason = "provider reported " + status
		}
		_, err := s.store.Deny(ctx, tx.ID, reason)
		return err
	default:
		if s.logger != nil {
			s.logger.Warn("unhandled provider status", "reference", reference, "status", status)
		}
		return nil
	}
}

func (s *Service) notify(ctx context.Context, kind string, tx ledger.Transaction, body string) {
	if s.notifier == nil {
		return
	}
	wallet, err := s.store.GetWallet(ctx, tx.WalletID)
	if err != nil {
		return
	}
	_ = s.notifier.Publish(ctx, notification.Event{
		Kind:          kind,
		UserID:        wallet.OwnerID,
		WalletID:      wallet.ID,
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Body:          body,
	})
}
