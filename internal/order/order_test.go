package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
)

func TestAddress_Validate(t *testing.T) {
	full := order.Address{Street: "12 MG Road", City: "Pune", State: "MH", ZipCode: "411001"}

	tests := []struct {
		name       string
		address    order.Address
		wantFields []string
	}{
		{name: "complete", address: full},
		{
			name:       "missing_city",
			address:    order.Address{Street: full.Street, State: full.State, ZipCode: full.ZipCode},
			wantFields: []string{"city"},
		},
		{
			name:       "blank_street_and_zip",
			address:    order.Address{Street: "   ", City: full.City, State: full.State, ZipCode: "\t"},
			wantFields: []string{"street", "zipCode"},
		},
		{
			name:    "country_is_optional",
			address: full.WithDefaultCountry(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.address.Validate()
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, order.ErrIncompleteAddress)
			var verr *order.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantFields, verr.Fields)
		})
	}
}

func TestAddress_WithDefaultCountry(t *testing.T) {
	assert.Equal(t, "India", order.Address{}.WithDefaultCountry("India").Country)
	assert.Equal(t, "Nepal", order.Address{Country: "Nepal"}.WithDefaultCountry("India").Country)
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.True(t, order.StatusPending.CanTransitionTo(order.StatusPaid))
	assert.True(t, order.StatusShipped.CanTransitionTo(order.StatusCancelled))
	assert.False(t, order.StatusDelivered.CanTransitionTo(order.StatusCancelled))
	assert.False(t, order.StatusPending.CanTransitionTo(order.StatusDelivered))
	assert.True(t, order.StatusCancelled.Terminal())
	assert.False(t, order.StatusPaid.Terminal())
	assert.False(t, order.OrderStatus("LOST").Known())
}

func TestTimeline(t *testing.T) {
	placed := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)

	t.Run("shipped", func(t *testing.T) {
		steps := order.Timeline(order.Order{Status: order.StatusShipped, CreatedAt: placed})
		require.Len(t, steps, 4)

		assert.Equal(t, "Apr 16, 2025 12:00", steps[0].Label)
		assert.Equal(t, "Completed", steps[1].Label)
		assert.Equal(t, "Current", steps[2].Label)
		assert.Equal(t, "Pending", steps[3].Label)
		assert.True(t, steps[2].Current)
		assert.Equal(t, []bool{true, true, true, false}, completed(steps))
	})

	t.Run("pending", func(t *testing.T) {
		steps := order.Timeline(order.Order{Status: order.StatusPending, CreatedAt: placed})
		assert.True(t, steps[0].Current)
		assert.Equal(t, []bool{true, false, false, false}, completed(steps))
	})

	t.Run("cancelled", func(t *testing.T) {
		steps := order.Timeline(order.Order{Status: order.StatusCancelled, CreatedAt: placed})
		assert.Equal(t, []bool{true, false, false, false}, completed(steps))
		for _, s := range steps {
			assert.False(t, s.Current)
		}
	})
}

func completed(steps []order.TrackingStep) []bool {
	out := make([]bool, len(steps))
	for i, s := range steps {
		out[i] = s.Completed
	}
	return out
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Order(ctx context.Context, id int64) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func TestTracker_Refresh(t *testing.T) {
	mockFetcher := new(MockFetcher)
	feed := notify.NewFeed(10)
	tracker := order.NewTracker(mockFetcher, feed)

	mockFetcher.On("Order", mock.Anything, int64(7)).
		Return(&order.Order{ID: 7, Status: order.StatusPaid}, nil).
		Once()
	mockFetcher.On("Order", mock.Anything, int64(7)).
		Return(&order.Order{ID: 7, Status: order.StatusShipped}, nil).
		Once()

	_, _, err := tracker.Refresh(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, feed.Recent(), "first observation must not notify")

	o, steps, err := tracker.Refresh(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, o.Status)
	assert.True(t, steps[2].Current)

	recent := feed.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, "Order #7 updated", recent[0].Title)
	assert.Equal(t, "Your order is on the way", recent[0].Message)

	mockFetcher.AssertExpectations(t)
}

func TestTracker_RefreshError(t *testing.T) {
	mockFetcher := new(MockFetcher)
	tracker := order.NewTracker(mockFetcher, notify.Discard{})

	fetchErr := errors.New("backend down")
	mockFetcher.On("Order", mock.Anything, int64(3)).Return(nil, fetchErr).Once()

	_, _, err := tracker.Refresh(context.Background(), 3)
	require.ErrorIs(t, err, fetchErr)
	mockFetcher.AssertExpectations(t)
}

func TestTracker_ResetForgetsObservedStatuses(t *testing.T) {
	mockFetcher := new(MockFetcher)
	feed := notify.NewFeed(10)
	tracker := order.NewTracker(mockFetcher, feed)

	mockFetcher.On("Order", mock.Anything, int64(7)).
		Return(&order.Order{ID: 7, Status: order.StatusPaid}, nil).
		Once()
	mockFetcher.On("Order", mock.Anything, int64(7)).
		Return(&order.Order{ID: 7, Status: order.StatusShipped}, nil).
		Once()

	_, _, err := tracker.Refresh(context.Background(), 7)
	require.NoError(t, err)

	tracker.Reset()

	_, _, err = tracker.Refresh(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, feed.Recent(), "status seen before reset must not notify")
	mockFetcher.AssertExpectations(t)
}
