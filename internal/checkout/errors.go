package checkout

import (
	"fmt"

	"github.com/vasiliy-maslov/skincare-storefront/internal/cart"
)

type Kind string

const (
	// KindValidation stops checkout before any network call.
	KindValidation    Kind = "validation"
	KindCancelled     Kind = "cancelled"
	KindPaymentFailed Kind = "payment-failed"
	// KindReconciliation means the payment was captured but no order was
	// recorded. PaymentID and Lines are always set.
	KindReconciliation Kind = "reconciliation"
)

const (
	titleMissingInfo    = "Missing Information"
	msgMissingInfo      = "Please fill in all address fields to continue with your order."
	titleEmptyCart      = "Cart is empty"
	msgEmptyCart        = "Add some products to your cart before checking out."
	titleCancelled      = "Payment Cancelled"
	msgCancelled        = "Payment was cancelled. Your order has not been placed."
	titlePaymentFailed  = "Payment Failed"
	msgPaymentFailed    = "Payment could not be processed. Please try again."
	titleOrderFailed    = "Order Processing Failed"
	msgOrderFailedStart = "Payment was successful but we couldn't process your order. Please contact support with your payment ID: "
	titleSuccess        = "Order Placed Successfully!"
	msgSuccess          = "Your skincare essentials are on their way. Thank you for choosing Dermatouch!"
)

// Error is a checkout failure with the message to show the shopper.
type Error struct {
	Kind      Kind
	Stage     Stage
	PaymentID string
	// Lines are the cart lines the payment covered.
	Lines   []cart.Line
	Title   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout: %s at %s: %s: %v", e.Kind, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("checkout: %s at %s: %s", e.Kind, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
