package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agora-community/agora_wallet/internal/identity"
	"github.com/agora-community/agora_wallet/internal/ledger"
	"github.com/agora-community/agora_wallet/internal/notification"
)

// ErrRecipientNotFound indicates the destination handle could not be resolved
// to a member with a wallet. Surfaced before any ledger mutation.
var ErrRecipientNotFound = errors.New("recipient not found")

// Service moves funds between member wallets. The debited wallet is always the
// authenticated caller's own wallet; the request never names a source wallet.
type Service struct {
	store    ledger.Store
	ids      *identity.Service
	notifier notification.Notifier
}

// NewService constructs a payments service.
func NewService(store ledger.Store, ids *identity.Service, notifier notification.Notifier) *Service {
	return &Service{store: store, ids: ids, notifier: notifier}
}

// TransferInput captures the data needed to send funds to another member.
type TransferInput struct {
	RequestorUserID string
	RecipientHandle string
	Amount          int64
	Note            string
}

// TransferResult describes the ledger outcome of a completed transfer.
type TransferResult struct {
	DebitTransactionID  string
	CreditTransactionID string
	TransferGroup       string
	FromBalance         int64
	CompletedAt         time.Time
}

// Transfer resolves the recipient and posts an atomic debit/credit pair.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, ledger.ErrInvalidAmount
	}

	recipient, err := s.ids.ResolveHandle(ctx, input.RecipientHandle)
	if err != nil {
		return TransferResult{}, ErrRecipientNotFound
	}
	if recipient.ID == input.RequestorUserID {
		return TransferResult{}, ledger.ErrSameWallet
	}

	fromWallet, err := s.store.GetOrCreateWallet(ctx, input.RequestorUserID)
	if err != nil {
		return TransferResult{}, err
	}
	toWallet, err := s.store.WalletByOwner(ctx, recipient.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			// The recipient exists but has never funded a wallet; provision
			// one so incoming transfers are not lost.
			toWallet, err = s.store.GetOrCreateWallet(ctx, recipient.ID)
		}
		if err != nil {
			return TransferResult{}, err
		}
	}

	res, err := s.store.Transfer(ctx, fromWallet.ID, toWallet.ID, input.Amount, input.Note)
	if err != nil {
		return TransferResult{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Publish(ctx, notification.Event{
			Kind:          notification.KindTransferReceived,
			UserID:        recipient.ID,
			WalletID:      toWallet.ID,
			TransactionID: res.Credit.ID,
			Amount:        input.Amount,
			Body:          fmt.Sprintf("You received %d cents", input.Amount),
		})
	}

	return TransferResult{
		DebitTransactionID:  res.Debit.ID,
		CreditTransactionID: res.Credit.ID,
		TransferGroup:       res.Debit.TransferGroup,
		FromBalance:         res.FromBalance,
		CompletedAt:         time.Now().UTC(),
	}, nil
}
