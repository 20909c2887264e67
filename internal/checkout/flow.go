// Package checkout runs the address, payment and order submission sequence
// and classifies every way it can fail.
package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/cart"
	"github.com/vasiliy-maslov/skincare-storefront/internal/metrics"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/payment"
)

type Stage string

const (
	StageCollectingAddress Stage = "collecting-address"
	StageAwaitingPayment   Stage = "awaiting-payment-authorization"
	StageSubmittingOrder   Stage = "submitting-order"
	StageCompleted         Stage = "completed"
	StageFailed            Stage = "failed"
)

type Config struct {
	GatewayKey     string          `koanf:"gateway_key"`
	MerchantName   string          `koanf:"merchant_name"`
	Description    string          `koanf:"description"`
	Currency       string          `koanf:"currency"`
	DefaultCountry string          `koanf:"default_country"`
	ThemeColor     string          `koanf:"theme_color"`
	Prefill        payment.Prefill `koanf:"prefill"`
}

type Cart interface {
	State() cart.State
	Checkout(ctx context.Context, lines []cart.Line, address order.Address, paymentID string) (*order.Order, error)
	RemovePurchased(ctx context.Context, lines []cart.Line)
}

type Result struct {
	Order     *order.Order `json:"order"`
	PaymentID string       `json:"paymentId"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
}

type Option func(*Flow)

// WithObserver registers fn to receive every stage change.
func WithObserver(fn func(Stage)) Option {
	return func(f *Flow) { f.observer = fn }
}

type Flow struct {
	cfg      Config
	cart     Cart
	provider payment.Provider
	notifier notify.Notifier
	observer func(Stage)

	// mu serializes runs; a second tap while a checkout is in flight waits.
	mu sync.Mutex
	// unrecorded holds the lines of captured payments that have no order
	// yet, keyed by payment ID.
	unrecorded map[string][]cart.Line
}

func New(cfg Config, c Cart, provider payment.Provider, notifier notify.Notifier, opts ...Option) *Flow {
	f := &Flow{
		cfg:        cfg,
		cart:       c,
		provider:   provider,
		notifier:   notifier,
		unrecorded: make(map[string][]cart.Line),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run validates the address, authorizes payment for the cart total and
// submits the order for the lines that were paid for. Those lines leave the
// cart only after the order is recorded.
func (f *Flow) Run(ctx context.Context, address order.Address) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enter(StageCollectingAddress)
	st := f.cart.State()
	if len(st.Lines) == 0 {
		return nil, f.fail(&Error{
			Kind:    KindValidation,
			Stage:   StageCollectingAddress,
			Title:   titleEmptyCart,
			Message: msgEmptyCart,
			Err:     cart.ErrEmptyCart,
		})
	}
	address = address.WithDefaultCountry(f.cfg.DefaultCountry)
	if err := address.Validate(); err != nil {
		return nil, f.fail(&Error{
			Kind:    KindValidation,
			Stage:   StageCollectingAddress,
			Title:   titleMissingInfo,
			Message: msgMissingInfo,
			Err:     err,
		})
	}

	f.enter(StageAwaitingPayment)
	auth, err := f.provider.Authorize(ctx, f.paymentRequest(st))
	if err != nil {
		return nil, f.fail(classifyPaymentError(err))
	}
	log.Info().Str("payment_id", auth.PaymentID).Msg("checkout: payment authorized")

	return f.submit(ctx, st.Lines, address, auth.PaymentID)
}

// Resubmit retries order submission for a payment that was already captured.
// The lines captured with the payment are submitted when known; otherwise
// the current cart is used.
func (f *Flow) Resubmit(ctx context.Context, address order.Address, paymentID string) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.enter(StageCollectingAddress)
	if paymentID == "" {
		return nil, f.fail(&Error{
			Kind:    KindValidation,
			Stage:   StageCollectingAddress,
			Title:   titleOrderFailed,
			Message: "A payment reference is required to resubmit an order.",
		})
	}
	lines, ok := f.unrecorded[paymentID]
	if !ok {
		lines = f.cart.State().Lines
	}
	if len(lines) == 0 {
		return nil, f.fail(&Error{
			Kind:      KindValidation,
			Stage:     StageCollectingAddress,
			PaymentID: paymentID,
			Title:     titleEmptyCart,
			Message:   msgEmptyCart,
			Err:       cart.ErrEmptyCart,
		})
	}
	address = address.WithDefaultCountry(f.cfg.DefaultCountry)
	if err := address.Validate(); err != nil {
		return nil, f.fail(&Error{
			Kind:      KindValidation,
			Stage:     StageCollectingAddress,
			PaymentID: paymentID,
			Lines:     lines,
			Title:     titleMissingInfo,
			Message:   msgMissingInfo,
			Err:       err,
		})
	}

	log.Info().Str("payment_id", paymentID).Bool("captured_lines", ok).Msg("checkout: resubmitting order for captured payment")
	return f.submit(ctx, lines, address, paymentID)
}

func (f *Flow) submit(ctx context.Context, lines []cart.Line, address order.Address, paymentID string) (*Result, error) {
	f.enter(StageSubmittingOrder)
	o, err := f.cart.Checkout(ctx, lines, address, paymentID)
	if err != nil {
		f.unrecorded[paymentID] = lines
		log.Error().Err(err).Str("payment_id", paymentID).Msg("checkout: payment captured but order was not recorded")
		return nil, f.fail(&Error{
			Kind:      KindReconciliation,
			Stage:     StageSubmittingOrder,
			PaymentID: paymentID,
			Lines:     lines,
			Title:     titleOrderFailed,
			Message:   msgOrderFailedStart + paymentID,
			Err:       err,
		})
	}

	delete(f.unrecorded, paymentID)
	f.cart.RemovePurchased(ctx, lines)
	f.enter(StageCompleted)
	metrics.CheckoutOutcomes.WithLabelValues("completed").Inc()
	notify.Success(f.notifier, titleSuccess, msgSuccess)
	log.Info().Int64("order_id", o.ID).Str("payment_id", paymentID).Msg("checkout: order placed")

	return &Result{Order: o, PaymentID: paymentID, Title: titleSuccess, Message: msgSuccess}, nil
}

func (f *Flow) paymentRequest(st cart.State) payment.Request {
	return payment.Request{
		Key:         f.cfg.GatewayKey,
		Amount:      MinorUnits(st),
		Currency:    f.cfg.Currency,
		Name:        f.cfg.MerchantName,
		Description: f.cfg.Description,
		Prefill:     f.cfg.Prefill,
		Theme:       payment.Theme{Color: f.cfg.ThemeColor},
	}
}

// MinorUnits converts the cart total to the smallest currency unit, rounding
// half away from zero.
func MinorUnits(st cart.State) int64 {
	return st.Total.Shift(2).Round(0).IntPart()
}

// classifyPaymentError separates a shopper cancellation from a gateway
// failure. Anything unrecognised counts as a failure.
func classifyPaymentError(err error) *Error {
	if errors.Is(err, payment.ErrCancelled) {
		return &Error{
			Kind:    KindCancelled,
			Stage:   StageAwaitingPayment,
			Title:   titleCancelled,
			Message: msgCancelled,
			Err:     err,
		}
	}
	msg := msgPaymentFailed
	var perr *payment.ProviderError
	if errors.As(err, &perr) && perr.Description != "" {
		msg = perr.Description
	}
	return &Error{
		Kind:    KindPaymentFailed,
		Stage:   StageAwaitingPayment,
		Title:   titlePaymentFailed,
		Message: msg,
		Err:     err,
	}
}

func (f *Flow) enter(s Stage) {
	if f.observer != nil {
		f.observer(s)
	}
}

func (f *Flow) fail(e *Error) *Error {
	f.enter(StageFailed)
	metrics.CheckoutOutcomes.WithLabelValues(string(e.Kind)).Inc()
	notify.Error(f.notifier, e.Title, e.Message)
	log.Warn().Str("kind", string(e.Kind)).Str("stage", string(e.Stage)).Str("payment_id", e.PaymentID).Err(e.Err).Msg("checkout: failed")
	return e
}
