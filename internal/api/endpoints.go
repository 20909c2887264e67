package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/metrics"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

var idempotencyNamespace = uuid.NewV5(uuid.NamespaceURL, "https://dermatouch.app/orders/payment")

// IdempotencyKey derives the order idempotency key for a payment reference.
// The same reference always yields the same key.
func IdempotencyKey(paymentID string) string {
	return uuid.NewV5(idempotencyNamespace, paymentID).String()
}

func (c *Client) Login(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

func (c *Client) Register(ctx context.Context, creds user.Credentials) (*user.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds user.Credentials) (*user.AuthResponse, error) {
	var resp user.AuthResponse
	_, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        path,
		route:       path,
		body:        creds,
		skipRefresh: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetTokens(ctx, resp.Tokens); err != nil {
		return nil, fmt.Errorf("api: store tokens: %w", err)
	}
	return &resp, nil
}

// Refresh exchanges the stored refresh token for a new pair and stores it.
func (c *Client) Refresh(ctx context.Context) (*user.Tokens, error) {
	current, err := c.tokens.Tokens(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("api: read refresh token: %w", err)
	}
	if current.RefreshToken == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, ErrNoRefreshToken
	}

	var resp user.AuthResponse
	_, err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/refresh",
		route:       "/auth/refresh",
		body:        map[string]string{"refreshToken": current.RefreshToken},
		skipRefresh: true,
	}, &resp)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, err
	}
	if resp.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("api: refresh returned no access token")
	}
	// Some backends do not rotate the refresh token.
	if resp.RefreshToken == "" {
		resp.RefreshToken = current.RefreshToken
	}
	if err := c.tokens.SetTokens(ctx, resp.Tokens); err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("api: store tokens: %w", err)
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	log.Info().Msg("api: access token refreshed")
	return &resp.Tokens, nil
}

func (c *Client) Profile(ctx context.Context) (*user.User, error) {
	var u user.User
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/profile", route: "/auth/profile"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Logout forgets the local token pair. The backend keeps no session to end.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.tokens.ClearTokens(ctx); err != nil {
		return fmt.Errorf("api: clear tokens: %w", err)
	}
	return nil
}

func (c *Client) Products(ctx context.Context, q catalog.ProductQuery) (*catalog.ProductPage, error) {
	var products []catalog.Product
	pagination, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/products",
		route:  "/products",
		query:  q.Values(),
	}, &products)
	if err != nil {
		return nil, err
	}
	page := &catalog.ProductPage{Products: products}
	if pagination != nil {
		page.Pagination = *pagination
	}
	return page, nil
}

func (c *Client) Product(ctx context.Context, id int64) (*catalog.Product, error) {
	var p catalog.Product
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/products/" + strconv.FormatInt(id, 10),
		route:  "/products/{id}",
	}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Categories(ctx context.Context) ([]catalog.Category, error) {
	var categories []catalog.Category
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/categories", route: "/categories"}, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) Category(ctx context.Context, id int64) (*catalog.Category, error) {
	var cat catalog.Category
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/categories/" + strconv.FormatInt(id, 10),
		route:  "/categories/{id}",
	}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// CreateOrder submits an order. When the request carries a payment reference
// an Idempotency-Key derived from it is sent, so resubmitting the same
// payment cannot create a second order on backends that honour the header.
func (c *Client) CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error) {
	header := http.Header{}
	if req.PaymentID != "" {
		header.Set("Idempotency-Key", IdempotencyKey(req.PaymentID))
	}

	var o order.Order
	if _, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/orders",
		route:  "/orders",
		body:   req,
		header: header,
	}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) Orders(ctx context.Context, q order.Query) (*order.Page, error) {
	var orders []order.Order
	pagination, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/orders",
		route:  "/orders",
		query:  q.Values(),
	}, &orders)
	if err != nil {
		return nil, err
	}
	page := &order.Page{Orders: orders}
	if pagination != nil {
		page.Pagination = *pagination
	}
	return page, nil
}

func (c *Client) Order(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if _, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/orders/" + strconv.FormatInt(id, 10),
		route:  "/orders/{id}",
	}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
