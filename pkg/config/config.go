package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Shipping     ShippingConfig
	Orders       OrdersConfig
	Webhook      WebhookConfig
	MercadoPago  MercadoPagoConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AVOBERRY_APP_ENV" required:"true"`
	Port         string `envconfig:"AVOBERRY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AVOBERRY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AVOBERRY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AVOBERRY_DB_DSN"`
	Driver string `envconfig:"AVOBERRY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AVOBERRY_DB_HOST"`
	LegacyPort     int    `envconfig:"AVOBERRY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AVOBERRY_DB_USER"`
	LegacyPassword string `envconfig:"AVOBERRY_DB_PASSWORD"`
	LegacyName     string `envconfig:"AVOBERRY_DB_NAME"`
	LegacySSLMode  string `envconfig:"AVOBERRY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AVOBERRY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AVOBERRY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AVOBERRY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AVOBERRY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AVOBERRY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AVOBERRY_REDIS_ADDR"`
	Password     string        `envconfig:"AVOBERRY_REDIS_PASSWORD"`
	DB           int           `envconfig:"AVOBERRY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AVOBERRY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AVOBERRY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AVOBERRY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AVOBERRY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AVOBERRY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ShippingConfig carries the flat-rate shipping policy. First purchases ship free.
type ShippingConfig struct {
	FlatRate float64 `envconfig:"AVOBERRY_SHIPPING_FLAT_RATE" default:"8000"`
}

type OrdersConfig struct {
	IDMaxAttempts       int `envconfig:"AVOBERRY_ORDER_ID_MAX_ATTEMPTS" default:"20"`
	BestSellerThreshold int `envconfig:"AVOBERRY_BEST_SELLER_THRESHOLD" default:"20"`
}

type WebhookConfig struct {
	Secret         string        `envconfig:"AVOBERRY_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"AVOBERRY_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// MercadoPagoConfig configures the payment gateway client used to resolve
// webhook notifications into full payment records.
type MercadoPagoConfig struct {
	AccessToken string        `envconfig:"AVOBERRY_MP_ACCESS_TOKEN"`
	BaseURL     string        `envconfig:"AVOBERRY_MP_BASE_URL" default:"https://api.mercadopago.com"`
	HTTPTimeout time.Duration `envconfig:"AVOBERRY_MP_HTTP_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AVOBERRY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
