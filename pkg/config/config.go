package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Catalog      CatalogConfig
	Relay        RelayConfig
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
	Env          string `envconfig:"VENDAS_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDAS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDAS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDAS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"VENDAS_DB_DSN"`

	Host     string `envconfig:"VENDAS_DB_HOST"`
	Port     int    `envconfig:"VENDAS_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDAS_DB_USER"`
	Password string `envconfig:"VENDAS_DB_PASSWORD"`
	Name     string `envconfig:"VENDAS_DB_NAME"`
	SSLMode  string `envconfig:"VENDAS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDAS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VENDAS_REDIS_ADDR"`
	Password     string        `envconfig:"VENDAS_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDAS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VENDAS_JWT_SECRET" required:"true"`
	PreviousSecret    string `envconfig:"VENDAS_JWT_PREVIOUS_SECRET"`
	Issuer            string `envconfig:"VENDAS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VENDAS_JWT_EXPIRATION_MINUTES" default:"15"`
	RefreshTTLMinutes int    `envconfig:"VENDAS_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"VENDAS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"VENDAS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"VENDAS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"VENDAS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"VENDAS_ARGON_KEY_LEN" default:"32"`

	VerifyPoolSize int `envconfig:"VENDAS_PASSWORD_VERIFY_POOL" default:"4"`
}

type CatalogConfig struct {
	CallTimeout    time.Duration `envconfig:"VENDAS_CATALOG_CALL_TIMEOUT" default:"3s"`
	IdempotencyTTL time.Duration `envconfig:"VENDAS_CATALOG_IDEMPOTENCY_TTL" default:"720h"`
}

type RelayConfig struct {
	BatchSize      int           `envconfig:"VENDAS_RELAY_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"VENDAS_RELAY_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"VENDAS_RELAY_MAX_ATTEMPTS" default:"10"`
	LeaseTimeout   time.Duration `envconfig:"VENDAS_RELAY_LEASE_TIMEOUT" default:"1m"`
	ReserveRetries int           `envconfig:"VENDAS_RELAY_RESERVE_RETRIES" default:"3"`
	MetricsPort    string        `envconfig:"VENDAS_RELAY_METRICS_PORT" default:"9091"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VENDAS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		"VENDAS_DB_HOST": db.Host,
		"VENDAS_DB_USER": db.User,
		"VENDAS_DB_NAME": db.Name,
	}
	for _, key := range []string{"VENDAS_DB_HOST", "VENDAS_DB_USER", "VENDAS_DB_NAME"} {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either VENDAS_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
