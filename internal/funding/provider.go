package funding

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CheckoutInput describes a top-up the provider should collect payment for.
type CheckoutInput struct {
	WalletID string
	Amount   int64
	Currency string
}

// CheckoutSession is the provider's handle for an in-flight payment. The
// reference comes back on the settlement webhook and is how the pending
// deposit is matched.
type CheckoutSession struct {
	Reference    string
	CheckoutURL  string
	ClientSecret string
	Mode         string
}

// Provider creates checkout sessions with the external payment processor.
type Provider interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (CheckoutSession, error)
}

// StubProvider issues locally generated references without calling out. Used
// in development and tests; settlement then arrives via the same webhook path
// as production.
type StubProvider struct{}

// CreateCheckout mints a checkout session with a synthetic reference.
func (StubProvider) CreateCheckout(_ context.Context, input CheckoutInput) (CheckoutSession, error) {
	ref := "pr_" + uuid.NewString()
	return CheckoutSession{
		Reference:    ref,
		CheckoutURL:  fmt.Sprintf("https://checkout.invalid/session/%s", ref),
		ClientSecret: ref + "_secret_test",
		Mode:         "test",
	}, nil
}
