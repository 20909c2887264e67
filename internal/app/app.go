// Package app wires the storefront components together from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/api"
	"github.com/vasiliy-maslov/skincare-storefront/internal/cart"
	"github.com/vasiliy-maslov/skincare-storefront/internal/checkout"
	"github.com/vasiliy-maslov/skincare-storefront/internal/config"
	handlerhttp "github.com/vasiliy-maslov/skincare-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
	"github.com/vasiliy-maslov/skincare-storefront/internal/order"
	"github.com/vasiliy-maslov/skincare-storefront/internal/payment"
	"github.com/vasiliy-maslov/skincare-storefront/internal/session"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/bolt"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/memory"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/postgres"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/redis"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
)

// App is the application-state container. Every field is safe for
// concurrent use.
type App struct {
	API           *api.Client
	Session       *session.Store
	Cart          *cart.Store
	Checkout      *checkout.Flow
	Tracker       *order.Tracker
	Notifications *notify.Feed

	store storage.Store
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	provider   payment.Provider
	store      storage.Store
}

// WithHTTPClient replaces the client used for backend calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithPaymentProvider overrides the provider chosen by configuration.
func WithPaymentProvider(p payment.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithStore overrides the storage driver chosen by configuration.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// New builds the container. Close releases the local store.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		store, err = OpenStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	vaultStore, err := storage.NewSealed(store, []byte(cfg.Storage.Secret))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("app: token vault: %w", err)
	}
	vault := session.NewVault(vaultStore)

	var apiOpts []api.Option
	if o.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(o.httpClient))
	}
	client := api.New(cfg.API, vault, apiOpts...)

	provider := o.provider
	if provider == nil {
		provider = NewPaymentProvider(cfg)
	}

	feed := notify.NewFeed(cfg.Notifications.FeedSize)
	sess := session.New(client, vault, feed)
	carts := cart.NewStore(sess, cart.NewSnapshots(store), client, feed)
	flow := checkout.New(cfg.Checkout, carts, provider, feed)

	a := &App{
		API:           client,
		Session:       sess,
		Cart:          carts,
		Checkout:      flow,
		Tracker:       order.NewTracker(client, feed),
		Notifications: feed,
		store:         store,
	}
	a.wire()
	return a, nil
}

func (a *App) wire() {
	a.API.OnSessionExpired(a.Session.ExpireSession)
	a.Session.OnSignIn(func(ctx context.Context, _ user.User) {
		a.Cart.LoadCart(ctx)
	})
	a.Session.OnSignOut(func(context.Context) {
		a.Cart.ClearUserData()
		a.Tracker.Reset()
	})
}

// Hydrate restores the session from stored tokens; the cart follows through
// the sign-in hook.
func (a *App) Hydrate(ctx context.Context) error {
	if err := a.Session.LoadUser(ctx); err != nil {
		return fmt.Errorf("app: hydrate: %w", err)
	}
	return nil
}

// Router serves the container over the local JSON API.
func (a *App) Router() http.Handler {
	return handlerhttp.NewRouter(handlerhttp.Services{
		Session:       a.Session,
		Cart:          a.Cart,
		Catalog:       a.API,
		Orders:        a.API,
		Checkout:      a.Checkout,
		Tracker:       a.Tracker,
		Notifications: a.Notifications,
	})
}

func (a *App) Close() error {
	return a.store.Close()
}

// OpenStore opens the configured local storage driver.
func OpenStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	var (
		s   storage.Store
		err error
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		s = memory.New()
	case config.StorageBolt:
		s, err = bolt.New(cfg.Storage.Bolt)
	case config.StorageRedis:
		s, err = redis.New(ctx, cfg.Storage.Redis)
	case config.StoragePostgres:
		s, err = postgres.New(ctx, cfg.Storage.Postgres)
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("app: open %s storage: %w", cfg.Storage.Driver, err)
	}
	log.Info().Str("driver", cfg.Storage.Driver).Msg("app: local storage ready")
	return s, nil
}

func NewPaymentProvider(cfg config.Config) payment.Provider {
	if cfg.Payment.Provider == config.PaymentBridge {
		return payment.NewBridge(cfg.Payment.Bridge)
	}
	return payment.Sandbox{}
}
