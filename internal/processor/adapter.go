package processor

import (
	"context"
	"fmt"

	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// WalletAdapter narrows a Port down to wallet.Processor's simpler
// (externalID string, err error) shape, turning a failed Result into an
// error the wallet service's apperr mapping can recognize.
type WalletAdapter struct {
	port Port
}

// NewWalletAdapter wraps port to satisfy wallet.Processor.
func NewWalletAdapter(port Port) *WalletAdapter {
	return &WalletAdapter{port: port}
}

var _ wallet.Processor = (*WalletAdapter)(nil)

func (a *WalletAdapter) Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (string, error) {
	res, err := a.port.Charge(ctx, amount, paymentMethodID, idemKey)
	if err != nil {
		return "", err
	}
	if !res.OK {
		return "", fmt.Errorf("processor: charge declined: %s", res.FailReason)
	}
	return res.ExternalID, nil
}

// PayoutAdapter narrows a Port down to payout.Processor's shape.
type PayoutAdapter struct {
	port Port
}

// NewPayoutAdapter wraps port to satisfy payout.Processor.
func NewPayoutAdapter(port Port) *PayoutAdapter {
	return &PayoutAdapter{port: port}
}

var _ payout.Processor = (*PayoutAdapter)(nil)

func (a *PayoutAdapter) Payout(ctx context.Context, amount money.Cents, externalAccountID string, method payout.Method, idemKey string) (string, error) {
	res, err := a.port.Payout(ctx, amount, externalAccountID, Method(method), idemKey)
	if err != nil {
		return "", err
	}
	if !res.OK {
		return "", fmt.Errorf("processor: payout declined: %s", res.FailReason)
	}
	return res.ExternalID, nil
}

func (a *PayoutAdapter) CancelPayout(ctx context.Context, processorPayoutID string) error {
	return a.port.CancelPayout(ctx, processorPayoutID)
}
