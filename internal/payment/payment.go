// Package payment is the port to the hosted payment gateway that authorizes
// a charge before the order is submitted.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled means the shopper closed the payment sheet.
var ErrCancelled = errors.New("payment: cancelled by user")

// ProviderError is a decline or failure reported by the gateway.
type ProviderError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *ProviderError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("payment: provider error %s", e.Code)
	}
	return fmt.Sprintf("payment: provider error %s: %s", e.Code, e.Description)
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

type Theme struct {
	Color string `json:"color"`
}

// Request opens the gateway's checkout. Amount is in minor units.
type Request struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image,omitempty"`
	Prefill     Prefill `json:"prefill"`
	Theme       Theme   `json:"theme"`
}

type Authorization struct {
	PaymentID string `json:"paymentId"`
}

// Provider authorizes a payment. It returns ErrCancelled when the shopper
// backs out and *ProviderError when the gateway declines.
type Provider interface {
	Authorize(ctx context.Context, req Request) (*Authorization, error)
}
