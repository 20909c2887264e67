package backendtest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
)

func (b *Backend) createOrder(c *gin.Context) {
	var req order.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid order payload")
		return
	}
	userID := c.GetInt64("userID")

	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderAttempts++

	key := c.GetHeader("Idempotency-Key")
	if id, seen := b.byIdemKey[key]; key != "" && seen {
		b.idempotentHits++
		ok(c, http.StatusOK, b.findOrder(id, userID), nil)
		return
	}
	if b.failOrders > 0 {
		b.failOrders--
		fail(c, http.StatusInternalServerError, "Failed to create order")
		return
	}
	if len(req.Items) == 0 {
		fail(c, http.StatusBadRequest, "Order must contain at least one item")
		return
	}

	o := &order.Order{
		ID:        int64(len(b.orders) + 1),
		UserID:    userID,
		Total:     decimal.Zero,
		Currency:  "INR",
		Status:    order.StatusPending,
		Address:   req.Address,
		CreatedAt: time.Now().UTC(),
	}
	for i, it := range req.Items {
		p := b.productByID(it.ProductID)
		if p == nil || it.Quantity <= 0 {
			fail(c, http.StatusBadRequest, "Invalid item "+strconv.Itoa(i))
			return
		}
		if it.Quantity > p.Stock {
			fail(c, http.StatusConflict, "Insufficient stock for "+p.Title)
			return
		}
		o.Items = append(o.Items, order.Item{
			ID:        int64(i + 1),
			ProductID: p.ID,
			Quantity:  it.Quantity,
			Price:     p.Price,
			Product:   &order.ProductSummary{ID: p.ID, Title: p.Title, Image: p.Image},
		})
		o.Total = o.Total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if req.PaymentID != "" {
		o.Status = order.StatusPaid
	}

	b.orders = append(b.orders, o)
	if key != "" {
		b.byIdemKey[key] = o.ID
	}
	ok(c, http.StatusCreated, o, nil)
}

// productByID returns a copy. b.mu must be held.
func (b *Backend) productByID(id int64) *catalog.Product {
	for _, p := range b.products {
		if p.ID == id {
			p := p
			return &p
		}
	}
	return nil
}

// findOrder returns the user's order or nil. b.mu must be held.
func (b *Backend) findOrder(id, userID int64) *order.Order {
	for _, o := range b.orders {
		if o.ID == id && o.UserID == userID {
			return o
		}
	}
	return nil
}

func (b *Backend) listOrders(c *gin.Context) {
	userID := c.GetInt64("userID")
	status := order.OrderStatus(c.Query("status"))

	b.mu.Lock()
	mine := make([]order.Order, 0)
	for i := len(b.orders) - 1; i >= 0; i-- {
		o := b.orders[i]
		if o.UserID != userID || (status != "" && o.Status != status) {
			continue
		}
		mine = append(mine, *o)
	}
	b.mu.Unlock()

	page, limit := pageParams(c)
	lo, hi, p := paginate(len(mine), page, limit)
	ok(c, http.StatusOK, mine[lo:hi], &p)
}

func (b *Backend) getOrder(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	o := b.findOrder(id, c.GetInt64("userID"))
	if o == nil {
		fail(c, http.StatusNotFound, "Order not found")
		return
	}
	ok(c, http.StatusOK, o, nil)
}
