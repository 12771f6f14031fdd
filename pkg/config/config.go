package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "communa"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "COMMUNA_APP_ENV"
	EnvDBDSN  = "COMMUNA_DB_DSN"
	EnvDBHost = "COMMUNA_DB_HOST"
	EnvDBUser = "COMMUNA_DB_USER"
	EnvDBName = "COMMUNA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Settlement   SettlementConfig
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
	Env          string `envconfig:"COMMUNA_APP_ENV" required:"true"`
	Port         string `envconfig:"COMMUNA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"COMMUNA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"COMMUNA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"COMMUNA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"COMMUNA_DB_DSN"`
	Driver string `envconfig:"COMMUNA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"COMMUNA_DB_HOST"`
	LegacyPort     int    `envconfig:"COMMUNA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"COMMUNA_DB_USER"`
	LegacyPassword string `envconfig:"COMMUNA_DB_PASSWORD"`
	LegacyName     string `envconfig:"COMMUNA_DB_NAME"`
	LegacySSLMode  string `envconfig:"COMMUNA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COMMUNA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COMMUNA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COMMUNA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COMMUNA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COMMUNA_REDIS_URL"`
	Address      string        `envconfig:"COMMUNA_REDIS_ADDR"`
	Password     string        `envconfig:"COMMUNA_REDIS_PASSWORD"`
	DB           int           `envconfig:"COMMUNA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COMMUNA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COMMUNA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COMMUNA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COMMUNA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COMMUNA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"COMMUNA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COMMUNA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COMMUNA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"COMMUNA_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"COMMUNA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"COMMUNA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"COMMUNA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"COMMUNA_PUBSUB_DOMAIN_TOPIC" default:"communa-domain-events"`
	DomainSubscription string `envconfig:"COMMUNA_PUBSUB_DOMAIN_SUBSCRIPTION" default:"communa-notifier"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"COMMUNA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"COMMUNA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"COMMUNA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// IdempotencyTTL bounds how long the notifier remembers a handled event
	// id when deduplicating redeliveries.
	IdempotencyTTL time.Duration `envconfig:"COMMUNA_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

type SettlementConfig struct {
	// LockTimeout bounds how long a unit of work may wait on row locks
	// before the operation is reported as a retryable conflict.
	LockTimeout time.Duration `envconfig:"COMMUNA_SETTLEMENT_LOCK_TIMEOUT" default:"3s"`
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
