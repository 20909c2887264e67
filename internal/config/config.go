package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/vasiliy-maslov/skincare-storefront/internal/api"
	"github.com/vasiliy-maslov/skincare-storefront/internal/checkout"
	"github.com/vasiliy-maslov/skincare-storefront/internal/logging"
	"github.com/vasiliy-maslov/skincare-storefront/internal/payment"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/bolt"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/postgres"
	"github.com/vasiliy-maslov/skincare-storefront/internal/storage/redis"
)

const EnvPrefix = "STOREFRONT_"

const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"

	PaymentSandbox = "sandbox"
	PaymentBridge  = "bridge"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		Env      string `koanf:"env"`
		HTTPAddr string `koanf:"http_addr"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	} `koanf:"http"`

	Log logging.Config `koanf:"log"`

	API api.Config `koanf:"api"`

	Storage struct {
		Driver string `koanf:"driver"`
		// Secret seeds the key that seals the token vault.
		Secret   string          `koanf:"secret"`
		Bolt     bolt.Config     `koanf:"bolt"`
		Redis    redis.Config    `koanf:"redis"`
		Postgres postgres.Config `koanf:"postgres"`
	} `koanf:"storage"`

	Payment struct {
		Provider string               `koanf:"provider"`
		Bridge   payment.BridgeConfig `koanf:"bridge"`
	} `koanf:"payment"`

	Checkout checkout.Config `koanf:"checkout"`

	Notifications struct {
		FeedSize int `koanf:"feed_size"`
	} `koanf:"notifications"`
}

// Default returns the configuration used when no file or variable says
// otherwise.
func Default() Config {
	var cfg Config
	cfg.App.Name = "storefront"
	cfg.App.Env = "dev"
	cfg.App.HTTPAddr = "127.0.0.1:8787"

	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 5*time.Minute + 30*time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 5 * time.Second

	cfg.Log = logging.Config{Level: "info", Console: true}

	cfg.API.Timeout = api.DefaultTimeout

	cfg.Storage.Driver = StorageBolt
	cfg.Storage.Bolt.Path = "data/storefront.db"
	cfg.Storage.Bolt.OpenTimeout = time.Second
	cfg.Storage.Redis.KeyPrefix = "storefront:"
	cfg.Storage.Postgres.Migrate = true

	cfg.Payment.Provider = PaymentSandbox
	cfg.Payment.Bridge.Timeout = 5 * time.Minute

	cfg.Checkout = checkout.Config{
		MerchantName:   "Dermatouch",
		Description:    "Dermatouch Skincare Products",
		Currency:       "INR",
		DefaultCountry: "India",
		ThemeColor:     "#2D5A27",
		Prefill: payment.Prefill{
			Name:    "Customer",
			Email:   "customer@dermatouch.com",
			Contact: "9999999999",
		},
	}

	cfg.Notifications.FeedSize = 50
	return cfg
}

// Load layers <dir>/base.yaml, <dir>/<envName>.yaml and STOREFRONT_*
// variables over Default. Nested keys use a double underscore, e.g.
// STOREFRONT_STORAGE__BOLT__PATH. A .env file at dotenv is read first when
// it exists.
func Load(dir, envName, dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", dotenv, err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(filepath.Join(dir, "base.yaml")), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("config: load base: %w", err)
	}
	if envName != "" {
		overlay := filepath.Join(dir, envName+".yaml")
		if _, err := os.Stat(overlay); err == nil {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", overlay, err)
			}
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: env overlay: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if envName != "" {
		cfg.App.Env = envName
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.App.HTTPAddr == "" {
		errs = append(errs, errors.New("app.http_addr required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url required"))
	}
	if c.Storage.Secret == "" {
		errs = append(errs, errors.New("storage.secret required"))
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageBolt:
		if c.Storage.Bolt.Path == "" {
			errs = append(errs, errors.New("storage.bolt.path required"))
		}
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr required"))
		}
	case StoragePostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q unknown", c.Storage.Driver))
	}

	switch c.Payment.Provider {
	case PaymentSandbox:
	case PaymentBridge:
		if c.Payment.Bridge.URL == "" {
			errs = append(errs, errors.New("payment.bridge.url required"))
		}
	default:
		errs = append(errs, fmt.Errorf("payment.provider %q unknown", c.Payment.Provider))
	}

	if c.Checkout.Currency == "" {
		errs = append(errs, errors.New("checkout.currency required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
