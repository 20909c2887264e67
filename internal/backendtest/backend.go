// Package backendtest runs an in-process storefront backend for tests. It
// speaks the same REST contract and envelope as the real service and exposes
// knobs to force token expiry and order failures.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

const issuer = "storefront-backendtest"

type account struct {
	user     user.User
	password string
}

type Backend struct {
	srv    *httptest.Server
	secret []byte

	mu         sync.Mutex
	accounts   map[string]*account
	refresh    map[string]int64
	products   []catalog.Product
	categories []catalog.Category
	orders     []*order.Order
	byIdemKey  map[string]int64
	generation int
	nextUserID int64

	failRefresh    bool
	failOrders     int
	refreshCount   int
	orderAttempts  int
	idempotentHits int
}

// Start serves a backend seeded with a small catalog and one account
// (asha@example.com / secret). It is closed when the test ends.
func Start(tb testing.TB) *Backend {
	tb.Helper()
	gin.SetMode(gin.TestMode)

	b := &Backend{
		secret:     []byte("backendtest-secret"),
		accounts:   make(map[string]*account),
		refresh:    make(map[string]int64),
		byIdemKey:  make(map[string]int64),
		nextUserID: 1,
	}
	b.seed()
	b.srv = httptest.NewServer(b.router())
	tb.Cleanup(b.srv.Close)
	return b
}

func (b *Backend) URL() string { return b.srv.URL }

func (b *Backend) seed() {
	created := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	b.categories = []catalog.Category{
		{ID: 1, Name: "Serums", ProductCount: 2},
		{ID: 2, Name: "Sunscreens", ProductCount: 1},
	}
	b.products = []catalog.Product{
		{ID: 1, Title: "Niacinamide Serum", Price: decimal.RequireFromString("10.00"), Stock: 50, IsActive: true, CategoryID: 1, CreatedAt: &created},
		{ID: 2, Title: "Vitamin C Serum", Price: decimal.RequireFromString("24.50"), Stock: 20, IsActive: true, CategoryID: 1, CreatedAt: &created},
		{ID: 3, Title: "SPF 50 Sunscreen", Price: decimal.RequireFromString("15.99"), Stock: 5, IsActive: true, CategoryID: 2, CreatedAt: &created},
	}
	b.addAccount("asha@example.com", "secret")
}

func (b *Backend) addAccount(email, password string) *account {
	a := &account{
		user:     user.User{ID: b.nextUserID, Email: email, Role: user.RoleUser, CreatedAt: time.Now().UTC()},
		password: password,
	}
	b.nextUserID++
	b.accounts[email] = a
	return a
}

// ExpireAccessTokens makes every access token issued so far fail with 401.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.generation++
}

// FailRefresh makes /auth/refresh reject every token while on.
func (b *Backend) FailRefresh(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = on
}

// FailNextOrders makes the next n order creations fail with 500.
func (b *Backend) FailNextOrders(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failOrders = n
}

// SetOrderStatus moves an order the way the fulfilment side would.
func (b *Backend) SetOrderStatus(id int64, status order.OrderStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.ID == id {
			o.Status = status
			now := time.Now().UTC()
			o.UpdatedAt = &now
		}
	}
}

func (b *Backend) RefreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshCount
}

func (b *Backend) OrderAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orderAttempts
}

func (b *Backend) OrderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// IdempotentReplays counts order creations answered from an earlier
// Idempotency-Key.
func (b *Backend) IdempotentReplays() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idempotentHits
}

func (b *Backend) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/auth/login", b.login)
	r.POST("/auth/register", b.register)
	r.POST("/auth/refresh", b.refreshTokens)

	r.GET("/products", b.listProducts)
	r.GET("/products/:id", b.getProduct)
	r.GET("/categories", b.listCategories)
	r.GET("/categories/:id", b.getCategory)

	authed := r.Group("/", b.requireAuth)
	authed.GET("/auth/profile", b.profile)
	authed.POST("/orders", b.createOrder)
	authed.GET("/orders", b.listOrders)
	authed.GET("/orders/:id", b.getOrder)
	return r
}

func ok(c *gin.Context, status int, data any, pagination *catalog.Pagination) {
	body := gin.H{"status": "success", "data": data}
	if pagination != nil {
		body["pagination"] = pagination
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}

// issue creates a token pair. b.mu must be held.
func (b *Backend) issue(userID int64) (user.Tokens, error) {
	now := time.Now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": issuer,
		"sub": strconv.FormatInt(userID, 10),
		"gen": b.generation,
		"iat": now.Unix(),
		"exp": now.Add(15 * time.Minute).Unix(),
	}).SignedString(b.secret)
	if err != nil {
		return user.Tokens{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return user.Tokens{}, err
	}
	refresh := id.String()
	b.refresh[refresh] = userID
	return user.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func (b *Backend) requireAuth(c *gin.Context) {
	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if raw == "" {
		fail(c, http.StatusUnauthorized, "Access token required")
		return
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return b.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil || !token.Valid {
		fail(c, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	claims := token.Claims.(jwt.MapClaims)
	gen, _ := claims["gen"].(float64)
	sub, _ := claims.GetSubject()
	userID, _ := strconv.ParseInt(sub, 10, 64)

	b.mu.Lock()
	current := b.generation
	b.mu.Unlock()
	if int(gen) < current {
		fail(c, http.StatusUnauthorized, "Token expired")
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func (b *Backend) login(c *gin.Context) {
	var creds user.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	a, found := b.accounts[creds.Email]
	if !found || a.password != creds.Password {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	tokens, err := b.issue(a.user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, user.AuthResponse{User: a.user, Tokens: tokens}, nil)
}

func (b *Backend) register(c *gin.Context) {
	var creds user.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.accounts[creds.Email]; taken {
		fail(c, http.StatusConflict, "User already exists")
		return
	}
	a := b.addAccount(creds.Email, creds.Password)
	tokens, err := b.issue(a.user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusCreated, user.AuthResponse{User: a.user, Tokens: tokens}, nil)
}

func (b *Backend) refreshTokens(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = c.ShouldBindJSON(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshCount++
	userID, found := b.refresh[body.RefreshToken]
	if b.failRefresh || !found {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(b.refresh, body.RefreshToken)
	tokens, err := b.issue(userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, http.StatusOK, user.AuthResponse{User: b.userByID(userID), Tokens: tokens}, nil)
}

func (b *Backend) userByID(id int64) user.User {
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a.user
		}
	}
	return user.User{}
}

func (b *Backend) profile(c *gin.Context) {
	b.mu.Lock()
	u := b.userByID(c.GetInt64("userID"))
	b.mu.Unlock()
	if u.ID == 0 {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	ok(c, http.StatusOK, u, nil)
}
