package payment

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// Sandbox approves every request, like the gateway's test mode.
type Sandbox struct{}

func (Sandbox) Authorize(ctx context.Context, req Request) (*Authorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, &ProviderError{Code: "BAD_REQUEST_ERROR", Description: "The amount must be at least 1."}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("payment: generate id: %w", err)
	}
	paymentID := "pay_" + hex.EncodeToString(id.Bytes())[:14]

	log.Info().Str("payment_id", paymentID).Int64("amount", req.Amount).Str("currency", req.Currency).Msg("payment: sandbox authorized")
	return &Authorization{PaymentID: paymentID}, nil
}
