package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindTransferReceived signals incoming funds from another member.
	KindTransferReceived = "transfer_received"
	// KindDepositCleared signals a settled top-up.
	KindDepositCleared = "deposit_cleared"
	// KindWithdrawalSettled signals an approved withdrawal.
	KindWithdrawalSettled = "withdrawal_settled"
	// KindWithdrawalDenied signals a denied withdrawal with refunded funds.
	KindWithdrawalDenied = "withdrawal_denied"
)

// Event describes a committed ledger mutation, published so streaming
// consumers can refresh balances without polling.
type Event struct {
	Kind          string `json:"kind"`
	UserID        string `json:"user_id"`
	WalletID      string `json:"wallet_id"`
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount_cents"`
	Body          string `json:"body,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

// Notifier delivers wallet events to downstream systems. Implementations are
// best-effort; a failed publish never rolls back the ledger mutation.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// LoggerNotifier is a stub implementation that writes events to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish writes the event to the structured logger.
func (n *LoggerNotifier) Publish(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("wallet event",
		"kind", event.Kind,
		"user_id", event.UserID,
		"wallet_id", event.WalletID,
		"transaction_id", event.TransactionID,
		"amount_cents", event.Amount,
	)
	return nil
}

// DefaultChannel is the pub/sub channel wallet events are published on.
const DefaultChannel = "wallet.events"

// RedisNotifier publishes events on a Redis pub/sub channel, standing in for
// the change-feed the web client subscribes to.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier constructs a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Publish serializes the event and publishes it. Errors are logged and
// swallowed; the ledger write already committed.
func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		if n.logger != nil {
			n.logger.Warn("publish wallet event", "kind", event.Kind, "error", err)
		}
		return err
	}
	return nil
}
