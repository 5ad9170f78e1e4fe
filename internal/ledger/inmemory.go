package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu       sync.Mutex
	currency string
	wallets  map[string]*Wallet
	byOwner  map[string]string
	txs      map[string]*Transaction
	byRef    map[string]string
	order    []string
}

// NewInMemory creates a concurrency-safe in-memory store. It mirrors the
// Postgres implementation's semantics and backs unit tests and dev mode.
func NewInMemory() Store {
	return &inMemoryStore{
		currency: "USD",
		wallets:  make(map[string]*Wallet),
		byOwner:  make(map[string]string),
		txs:      make(map[string]*Transaction),
		byRef:    make(map[string]string),
	}
}

func (s *inMemoryStore) GetOrCreateWallet(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byOwner[ownerID]; ok {
		return *s.wallets[id], nil
	}
	w := &Wallet{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Balance:   0,
		Currency:  s.currency,
		CreatedAt: time.Now().UTC(),
	}
	s.wallets[w.ID] = w
	s.byOwner[ownerID] = w.ID
	return *w, nil
}

func (s *inMemoryStore) GetWallet(_ context.Context, walletID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byOwner[ownerID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *s.wallets[id], nil
}

func (s *inMemoryStore) AdjustBalance(_ context.Context, walletID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLocked(walletID, delta)
}

func (s *inMemoryStore) Balance(_ context.Context, walletID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	return w.Balance, nil
}

func (s *inMemoryStore) ListTransactions(_ context.Context, walletID string, limit, offset int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []Transaction
	skipped := 0
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.txs[s.order[i]]
		if t.WalletID != walletID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *inMemoryStore) GetTransaction(_ context.Context, txID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[txID]
	if !ok {
		return Transaction{}, ErrUnknownTransaction
	}
	return *t, nil
}

func (s *inMemoryStore) FindByProviderRef(_ context.Context, ref string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[ref]
	if !ok {
		return Transaction{}, ErrUnknownTransaction
	}
	return *s.txs[id], nil
}

func (s *inMemoryStore) ListPendingWithdrawals(_ context.Context, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var out []Transaction
	for _, id := range s.order {
		t := s.txs[id]
		if t.Kind == KindWithdrawal && t.Status == StatusPending {
			out = append(out, *t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *inMemoryStore) CreateDeposit(_ context.Context, walletID string, amount int64, note, providerRef string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[walletID]; !ok {
		return Transaction{}, ErrWalletNotFound
	}
	t := s.recordLocked(Transaction{
		WalletID:    walletID,
		Kind:        KindDeposit,
		Amount:      amount,
		Note:        note,
		Status:      StatusPending,
		ProviderRef: providerRef,
	})
	return t, nil
}

func (s *inMemoryStore) RequestWithdrawal(_ context.Context, walletID string, amount int64, note string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.adjustLocked(walletID, -amount); err != nil {
		return Transaction{}, err
	}
	t := s.recordLocked(Transaction{
		WalletID: walletID,
		Kind:     KindWithdrawal,
		Amount:   amount,
		Note:     note,
		Status:   StatusPending,
	})
	return t, nil
}

func (s *inMemoryStore) Transfer(_ context.Context, fromWalletID, toWalletID string, amount int64, note string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if fromWalletID == toWalletID {
		return TransferResult{}, ErrSameWallet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[toWalletID]; !ok {
		return TransferResult{}, ErrWalletNotFound
	}
	fromBalance, err := s.adjustLocked(fromWalletID, -amount)
	if err != nil {
		return TransferResult{}, err
	}
	toBalance, err := s.adjustLocked(toWalletID, amount)
	if err != nil {
		return TransferResult{}, err
	}

	now := time.Now().UTC()
	group := uuid.New().String()
	debit := s.recordLocked(Transaction{
		WalletID:      fromWalletID,
		Kind:          KindTransferOut,
		Amount:        amount,
		Note:          note,
		Status:        StatusCleared,
		TransferGroup: group,
		SettledAt:     now,
	})
	credit := s.recordLocked(Transaction{
		WalletID:      toWalletID,
		Kind:          KindTransferIn,
		Amount:        amount,
		Note:          note,
		Status:        StatusCleared,
		TransferGroup: group,
		SettledAt:     now,
	})
	return TransferResult{Debit: debit, Credit: credit, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

func (s *inMemoryStore) Settle(_ context.Context, txID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[txID]
	if !ok {
		return Transaction{}, ErrUnknownTransaction
	}
	if t.Status.Terminal() {
		return *t, nil
	}
	if t.Kind.CreditsOnSettle() {
		if _, err := s.adjustLocked(t.WalletID, t.Amount); err != nil {
			return Transaction{}, err
		}
	}
	t.Status = StatusCleared
	t.SettledAt = time.Now().UTC()
	return *t, nil
}

func (s *inMemoryStore) Deny(_ context.Context, txID, reason string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[txID]
	if !ok {
		return Transaction{}, ErrUnknownTransaction
	}
	if t.Status.Terminal() {
		return *t, nil
	}
	if t.Kind.DebitsAtCreation() {
		if _, err := s.adjustLocked(t.WalletID, t.Amount); err != nil {
			return Transaction{}, err
		}
	}
	t.Status = StatusDenied
	t.Reason = reason
	t.SettledAt = time.Now().UTC()
	return *t, nil
}

func (s *inMemoryStore) adjustLocked(walletID string, delta int64) (int64, error) {
	w, ok := s.wallets[walletID]
	if !ok {
		return 0, ErrWalletNotFound
	}
	if w.Balance+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	w.Balance += delta
	return w.Balance, nil
}

func (s *inMemoryStore) recordLocked(t Transaction) Transaction {
	t.ID = uuid.New().String()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	stored := t
	s.txs[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	if stored.ProviderRef != "" {
		s.byRef[stored.ProviderRef] = stored.ID
	}
	return stored
}
