package wallet

import (
	"context"
	"time"

	"github.com/agora-community/agora_wallet/internal/ledger"
)

// Service exposes the caller's wallet view over the ledger store. Wallets are
// created lazily on first access; the owner identity always comes from the
// verified token, never the request body.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	Currency string
	AsOf     time.Time
}

// GetOrCreate returns the owner's wallet, provisioning an empty one if needed.
func (s *Service) GetOrCreate(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	return s.store.GetOrCreateWallet(ctx, ownerID)
}

// Balance returns the owner's current balance.
func (s *Service) Balance(ctx context.Context, ownerID string) (Balance, error) {
	w, err := s.store.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}

// Transactions lists the owner's transaction history, newest first.
func (s *Service) Transactions(ctx context.Context, ownerID string, limit, offset int) ([]ledger.Transaction, error) {
	w, err := s.store.GetOrCreateWallet(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, w.ID, limit, offset)
}
