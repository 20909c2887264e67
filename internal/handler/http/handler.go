// Package http serves the storefront core to a UI shell as a local JSON API.
// It holds no state of its own.
package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/cart"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/checkout"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/session"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

type SessionService interface {
	Login(ctx context.Context, email, password string) (*user.User, error)
	Register(ctx context.Context, email, password string) (*user.User, error)
	Logout(ctx context.Context) error
	Snapshot(ctx context.Context) session.Snapshot
}

type CartService interface {
	State() cart.State
	AddQuantity(ctx context.Context, p catalog.Product, n int) error
	RemoveFromCart(ctx context.Context, productID int64)
	UpdateQuantity(ctx context.Context, productID int64, quantity int)
	ClearCart(ctx context.Context)
}

type CatalogService interface {
	Products(ctx context.Context, q catalog.ProductQuery) (*catalog.ProductPage, error)
	Product(ctx context.Context, id int64) (*catalog.Product, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	Category(ctx context.Context, id int64) (*catalog.Category, error)
}

type OrderService interface {
	Orders(ctx context.Context, q order.Query) (*order.Page, error)
	Order(ctx context.Context, id int64) (*order.Order, error)
}

type CheckoutService interface {
	Run(ctx context.Context, address order.Address) (*checkout.Result, error)
	Resubmit(ctx context.Context, address order.Address, paymentID string) (*checkout.Result, error)
}

type TrackingService interface {
	Refresh(ctx context.Context, id int64) (*order.Order, []order.TrackingStep, error)
}

type NotificationFeed interface {
	Recent() []notify.Notification
}

type Services struct {
	Session       SessionService
	Cart          CartService
	Catalog       CatalogService
	Orders        OrderService
	Checkout      CheckoutService
	Tracker       TrackingService
	Notifications NotificationFeed
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AddItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity,omitempty" validate:"omitempty,min=1,max=99"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0,max=99"`
}

// CheckoutRequest leaves address validation to the checkout flow so the
// shopper sees its message.
type CheckoutRequest struct {
	Address order.Address `json:"address" validate:"-"`
}

type ResubmitRequest struct {
	Address   order.Address `json:"address" validate:"-"`
	PaymentID string        `json:"paymentId" validate:"required"`
}

type TrackingResponse struct {
	Order *order.Order         `json:"order"`
	Steps []order.TrackingStep `json:"steps"`
}

type Handler struct {
	svc      Services
	validate *validator.Validate
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc, validate: order.Validator()}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/auth/login", h.handleLogin)
	router.Post("/auth/register", h.handleRegister)
	router.Post("/auth/logout", h.handleLogout)
	router.Get("/me", h.handleMe)

	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)
	router.Get("/categories/{id}", h.handleGetCategory)

	router.Get("/cart", h.handleGetCart)
	router.Post("/cart/items", h.handleAddItem)
	router.Put("/cart/items/{productId}", h.handleUpdateItem)
	router.Delete("/cart/items/{productId}", h.handleRemoveItem)
	router.Delete("/cart", h.handleClearCart)

	router.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Post("/checkout", h.handleCheckout)
		r.Post("/checkout/resubmit", h.handleResubmit)
		r.Get("/orders", h.handleListOrders)
		r.Get("/orders/{id}", h.handleGetOrder)
		r.Get("/orders/{id}/tracking", h.handleTracking)
	})

	router.Get("/notifications", h.handleNotifications)
}

func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Session.Snapshot(r.Context()).Authenticated {
			respondWithError(w, http.StatusUnauthorized, "Please login to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.svc.Session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithServiceError(w, err, "Login failed")
		return
	}
	respondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.svc.Session.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithServiceError(w, err, "Registration failed")
		return
	}
	respondWithJSON(w, http.StatusCreated, u)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Session.Logout(r.Context()); err != nil {
		log.Error().Err(err).Msg("http: logout left tokens behind")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.svc.Session.Snapshot(r.Context()))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := catalog.ProductQuery{
		Search:    q.Get("search"),
		SortBy:    catalog.SortField(q.Get("sortBy")),
		SortOrder: catalog.SortOrder(q.Get("sortOrder")),
	}
	var err error
	if query.CategoryID, err = optionalInt64(q.Get("categoryId")); err == nil {
		if query.Page, err = optionalInt(q.Get("page")); err == nil {
			query.Limit, err = optionalInt(q.Get("limit"))
		}
	}
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid query parameter")
		return
	}
	if err := h.validate.Struct(query); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid query parameter")
		return
	}

	page, err := h.svc.Catalog.Products(r.Context(), query)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load products")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func optionalInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.Catalog.Product(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load product")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Catalog.Categories(r.Context())
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.svc.Catalog.Category(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load category")
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.svc.Cart.State())
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.svc.Catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load product")
		return
	}
	qty := req.Quantity
	if qty < 1 {
		qty = 1
	}
	if err := h.svc.Cart.AddQuantity(r.Context(), *p, qty); err != nil {
		h.respondWithServiceError(w, err, "Failed to add product")
		return
	}
	respondWithJSON(w, http.StatusOK, h.svc.Cart.State())
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "productId")
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.svc.Cart.UpdateQuantity(r.Context(), id, req.Quantity)
	respondWithJSON(w, http.StatusOK, h.svc.Cart.State())
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "productId")
	if !ok {
		return
	}
	h.svc.Cart.RemoveFromCart(r.Context(), id)
	respondWithJSON(w, http.StatusOK, h.svc.Cart.State())
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.svc.Cart.ClearCart(r.Context())
	respondWithJSON(w, http.StatusOK, h.svc.Cart.State())
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Checkout.Run(r.Context(), req.Address)
	if err != nil {
		respondWithCheckoutError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleResubmit(w http.ResponseWriter, r *http.Request) {
	var req ResubmitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	res, err := h.svc.Checkout.Resubmit(r.Context(), req.Address, req.PaymentID)
	if err != nil {
		respondWithCheckoutError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, res)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := order.Query{Status: order.OrderStatus(q.Get("status"))}
	if query.Status != "" && !query.Status.Known() {
		respondWithError(w, http.StatusBadRequest, "Invalid status parameter")
		return
	}
	var err error
	if query.Page, err = optionalInt(q.Get("page")); err == nil {
		query.Limit, err = optionalInt(q.Get("limit"))
	}
	if err != nil || query.Page < 0 || query.Limit < 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid query parameter")
		return
	}

	page, err := h.svc.Orders.Orders(r.Context(), query)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load orders")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	o, err := h.svc.Orders.Order(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load order")
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *Handler) handleTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	o, steps, err := h.svc.Tracker.Refresh(r.Context(), id)
	if err != nil {
		h.respondWithServiceError(w, err, "Failed to load order")
		return
	}
	respondWithJSON(w, http.StatusOK, TrackingResponse{Order: o, Steps: steps})
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.svc.Notifications.Recent())
}
