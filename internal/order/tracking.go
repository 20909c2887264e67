package order

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
)

type TrackingStep struct {
	Status      OrderStatus `json:"status"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Label       string      `json:"label"`
	Completed   bool        `json:"completed"`
	Current     bool        `json:"current"`
}

var trackingSteps = []TrackingStep{
	{Status: StatusPending, Title: "Order Placed", Description: "Your order has been received"},
	{Status: StatusPaid, Title: "Payment Confirmed", Description: "Payment has been processed"},
	{Status: StatusShipped, Title: "Order Shipped", Description: "Your order is on the way"},
	{Status: StatusDelivered, Title: "Delivered", Description: "Order has been delivered"},
}

const trackingDateLayout = "Jan 2, 2006 15:04"

// Timeline builds the four delivery steps for o. A cancelled order has no
// current step and every step after placement stays pending.
func Timeline(o Order) []TrackingStep {
	current := -1
	for i, s := range trackingSteps {
		if s.Status == o.Status {
			current = i
			break
		}
	}

	steps := make([]TrackingStep, len(trackingSteps))
	for i, s := range trackingSteps {
		switch {
		case i == 0 && (current >= 0 || o.Status == StatusCancelled):
			s.Label = o.CreatedAt.Format(trackingDateLayout)
			s.Completed = true
			s.Current = current == 0
		case current >= 0 && i == current:
			s.Label = "Current"
			s.Completed = true
			s.Current = true
		case current >= 0 && i < current:
			s.Label = "Completed"
			s.Completed = true
		default:
			s.Label = "Pending"
		}
		steps[i] = s
	}
	return steps
}

type Fetcher interface {
	Order(ctx context.Context, id int64) (*Order, error)
}

var statusMessages = map[OrderStatus]string{
	StatusPaid:      "Payment has been confirmed",
	StatusShipped:   "Your order is on the way",
	StatusDelivered: "Your order has been delivered",
	StatusCancelled: "Your order has been cancelled",
}

// Tracker remembers the last observed status per order and notifies the
// user when the backend reports a change.
type Tracker struct {
	fetcher  Fetcher
	notifier notify.Notifier

	mu   sync.Mutex
	seen map[int64]OrderStatus
}

func NewTracker(fetcher Fetcher, notifier notify.Notifier) *Tracker {
	return &Tracker{
		fetcher:  fetcher,
		notifier: notifier,
		seen:     make(map[int64]OrderStatus),
	}
}

// Refresh fetches the order and returns it with its timeline.
func (t *Tracker) Refresh(ctx context.Context, id int64) (*Order, []TrackingStep, error) {
	o, err := t.fetcher.Order(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("order: refresh %d: %w", id, err)
	}

	t.mu.Lock()
	prev, known := t.seen[id]
	t.seen[id] = o.Status
	t.mu.Unlock()

	if known && prev != o.Status {
		if !prev.CanTransitionTo(o.Status) {
			log.Warn().
				Int64("order_id", id).
				Stringer("previous_status", prev).
				Stringer("status", o.Status).
				Msg("order: backend reported an unexpected status transition")
		}
		msg, ok := statusMessages[o.Status]
		if !ok {
			msg = "Order status is now " + o.Status.String()
		}
		notify.Info(t.notifier, fmt.Sprintf("Order #%d updated", id), msg)
	}

	return o, Timeline(*o), nil
}

// Reset forgets every observed status. Called when the user signs out.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen = make(map[int64]OrderStatus)
}
