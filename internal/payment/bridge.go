package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type BridgeConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// Bridge hands the request to a hosted checkout page and waits for the
// shopper's outcome. The call blocks until the bridge answers.
type Bridge struct {
	url  string
	http *http.Client
}

func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Bridge{url: cfg.URL, http: &http.Client{Timeout: cfg.Timeout}}
}

type bridgeResponse struct {
	Status    string         `json:"status"`
	PaymentID string         `json:"paymentId"`
	Error     *ProviderError `json:"error,omitempty"`
}

func (b *Bridge) Authorize(ctx context.Context, req Request) (*Authorization, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("payment: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment: bridge: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment: read bridge response: %w", err)
	}
	var out bridgeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payment: bridge returned %d: %w", resp.StatusCode, err)
	}

	switch out.Status {
	case "authorized":
		if out.PaymentID == "" {
			return nil, &ProviderError{Code: "NO_PAYMENT_ID", Description: "Payment gateway returned no payment reference."}
		}
		log.Info().Str("payment_id", out.PaymentID).Msg("payment: authorized")
		return &Authorization{PaymentID: out.PaymentID}, nil
	case "cancelled":
		return nil, ErrCancelled
	case "failed":
		if out.Error == nil {
			return nil, &ProviderError{}
		}
		return nil, out.Error
	default:
		return nil, fmt.Errorf("payment: bridge returned %d with status %q", resp.StatusCode, out.Status)
	}
}
