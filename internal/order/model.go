package order

import (
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

func (os OrderStatus) String() string {
	return string(os)
}

// Status changes happen on the backend only. The table is used to flag
// server-reported transitions the client does not expect.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (os OrderStatus) Known() bool {
	_, ok := allowedTransitions[os]
	return ok
}

// CanTransitionTo reports whether next is reachable from os in one step.
func (os OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowedTransitions[os][next]
}

func (os OrderStatus) Terminal() bool {
	t, ok := allowedTransitions[os]
	return ok && len(t) == 0
}

// Address is copied into the order at creation time.
type Address struct {
	Street  string `json:"street" validate:"required,notblank"`
	City    string `json:"city" validate:"required,notblank"`
	State   string `json:"state" validate:"required,notblank"`
	ZipCode string `json:"zipCode" validate:"required,notblank"`
	Country string `json:"country"`
}

type ProductSummary struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Image string `json:"image"`
}

type Item struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Product   *ProductSummary `json:"product,omitempty"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"userId"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Status    OrderStatus     `json:"status"`
	Address   Address         `json:"address"`
	Items     []Item          `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
	User      *Customer       `json:"user,omitempty"`
}

// CreateItem carries no price: the backend prices the order itself.
type CreateItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CreateRequest struct {
	Items     []CreateItem `json:"items"`
	Address   Address      `json:"address"`
	PaymentID string       `json:"paymentId,omitempty"`
}

type Query struct {
	Status OrderStatus `json:"status,omitempty"`
	Page   int         `json:"page,omitempty"`
	Limit  int         `json:"limit,omitempty"`
}

func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

type Page struct {
	Orders     []Order            `json:"orders"`
	Pagination catalog.Pagination `json:"pagination"`
}
