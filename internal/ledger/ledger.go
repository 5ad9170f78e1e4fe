package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidAmount occurs when an operation is requested for a zero or
	// negative amount of minor units.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientFunds occurs when a debit would take a wallet balance
	// below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrUnknownTransaction indicates no transaction matches the given
	// identifier or provider reference.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrSameWallet occurs when a transfer names the same wallet on both sides.
	ErrSameWallet = errors.New("cannot transfer to the same wallet")
)

// Kind classifies a balance-affecting event. The stored amount is always
// positive; the sign of the balance effect is implied by the kind.
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

// CreditsOnSettle reports whether settling a transaction of this kind credits
// the wallet. Debit-first kinds already moved funds at creation time.
func (k Kind) CreditsOnSettle() bool {
	return k == KindDeposit || k == KindTransferIn
}

// DebitsAtCreation reports whether the wallet was debited when the
// transaction was created.
func (k Kind) DebitsAtCreation() bool {
	return k == KindWithdrawal || k == KindTransferOut
}

// Status is the settlement state of a transaction. Cleared and denied are
// terminal; no transition out of a terminal state is permitted.
type Status string

const (
	StatusPending Status = "pending"
	StatusCleared Status = "cleared"
	StatusDenied  Status = "denied"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCleared || s == StatusDenied
}

// Wallet is a stored-value account, at most one per user identity.
type Wallet struct {
	ID        string
	OwnerID   string
	Balance   int64
	Currency  string
	CreatedAt time.Time
}

// Transaction records a balance-affecting event. Once cleared or denied the
// record is frozen.
type Transaction struct {
	ID       string
	WalletID string
	Kind     Kind
	Amount   int64
	Note     string
	Status   Status
	// ProviderRef correlates a deposit with the external payment provider's
	// settlement notification. Matched at most once.
	ProviderRef string
	// TransferGroup links the debit and credit rows of a transfer pair.
	TransferGroup string
	// Reason carries the denial reason for denied transactions.
	Reason    string
	CreatedAt time.Time
	SettledAt time.Time
}

// TransferResult is the outcome of an atomic wallet-to-wallet transfer.
type TransferResult struct {
	Debit       Transaction
	Credit      Transaction
	FromBalance int64
	ToBalance   int64
}

// Store is the durable ledger. Implementations guarantee that every
// balance-affecting method executes as a single atomic unit of work and that
// concurrent operations against the same wallet serialize. AdjustBalance is
// the only sanctioned balance mutation path; all other methods route through
// the same underlying mutation.
type Store interface {
	// GetOrCreateWallet returns the owner's wallet, creating an empty one if
	// absent. Safe under concurrent first access.
	GetOrCreateWallet(ctx context.Context, ownerID string) (Wallet, error)
	GetWallet(ctx context.Context, walletID string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)

	// AdjustBalance atomically applies a signed delta and returns the new
	// balance. Fails with ErrInsufficientFunds if the result would go negative.
	AdjustBalance(ctx context.Context, walletID string, delta int64) (int64, error)
	Balance(ctx context.Context, walletID string) (int64, error)

	// ListTransactions returns the wallet's transactions, newest first.
	ListTransactions(ctx context.Context, walletID string, limit, offset int) ([]Transaction, error)
	GetTransaction(ctx context.Context, txID string) (Transaction, error)
	FindByProviderRef(ctx context.Context, ref string) (Transaction, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]Transaction, error)

	// CreateDeposit records a pending deposit with no balance effect. The
	// provider reference is stored for later reconciliation.
	CreateDeposit(ctx context.Context, walletID string, amount int64, note, providerRef string) (Transaction, error)

	// RequestWithdrawal debits the wallet and records a pending withdrawal in
	// one unit of work, so the funds are unavailable while awaiting review.
	RequestWithdrawal(ctx context.Context, walletID string, amount int64, note string) (Transaction, error)

	// Transfer moves funds between two wallets as an all-or-nothing pair of
	// cleared transactions sharing a correlation id.
	Transfer(ctx context.Context, fromWalletID, toWalletID string, amount int64, note string) (TransferResult, error)

	// Settle transitions pending->cleared, crediting the wallet for kinds
	// that credit on settlement. Settling a terminal transaction is a no-op
	// returning the existing record.
	Settle(ctx context.Context, txID string) (Transaction, error)

	// Deny transitions pending->denied, refunding the wallet for kinds that
	// debited at creation. Denying a terminal transaction is a no-op.
	Deny(ctx context.Context, txID, reason string) (Transaction, error)
}
