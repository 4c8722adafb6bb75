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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Reservations ReservationsConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
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
	Env          string `envconfig:"PITCHPOINT_APP_ENV" required:"true"`
	Port         string `envconfig:"PITCHPOINT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PITCHPOINT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PITCHPOINT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PITCHPOINT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PITCHPOINT_DB_DSN"`
	Driver string `envconfig:"PITCHPOINT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PITCHPOINT_DB_HOST"`
	LegacyPort     int    `envconfig:"PITCHPOINT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PITCHPOINT_DB_USER"`
	LegacyPassword string `envconfig:"PITCHPOINT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PITCHPOINT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PITCHPOINT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PITCHPOINT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PITCHPOINT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PITCHPOINT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PITCHPOINT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PITCHPOINT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PITCHPOINT_REDIS_ADDR"`
	Password     string        `envconfig:"PITCHPOINT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PITCHPOINT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PITCHPOINT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PITCHPOINT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PITCHPOINT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PITCHPOINT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PITCHPOINT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// ReservationsConfig tunes hold lifetimes and the expiry sweep cadence.
type ReservationsConfig struct {
	HoldTTL              time.Duration `envconfig:"PITCHPOINT_RESERVATIONS_HOLD_TTL" default:"30m"`
	CODGraceWindow       time.Duration `envconfig:"PITCHPOINT_RESERVATIONS_COD_GRACE" default:"24h"`
	SweepInterval        time.Duration `envconfig:"PITCHPOINT_RESERVATIONS_SWEEP_INTERVAL" default:"1m"`
	SweepBatchSize       int           `envconfig:"PITCHPOINT_RESERVATIONS_SWEEP_BATCH_SIZE" default:"100"`
	WebhookGuardTTL      time.Duration `envconfig:"PITCHPOINT_RESERVATIONS_WEBHOOK_GUARD_TTL" default:"72h"`
	MaxWindowNights      int           `envconfig:"PITCHPOINT_RESERVATIONS_MAX_WINDOW_NIGHTS" default:"28"`
	MaxLineItemsPerOrder int           `envconfig:"PITCHPOINT_RESERVATIONS_MAX_LINE_ITEMS" default:"25"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"PITCHPOINT_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"PITCHPOINT_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"PITCHPOINT_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"PITCHPOINT_SQUARE_LOCATION_ID"`
	RedirectURL   string `envconfig:"PITCHPOINT_SQUARE_REDIRECT_URL"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PITCHPOINT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PITCHPOINT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PITCHPOINT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ReservationsTopic        string `envconfig:"PITCHPOINT_PUBSUB_RESERVATIONS_TOPIC" default:"pp-reservation-events"`
	ReservationsSubscription string `envconfig:"PITCHPOINT_PUBSUB_RESERVATIONS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"PITCHPOINT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"PITCHPOINT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"PITCHPOINT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PITCHPOINT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PITCHPOINT_AUTO_MIGRATE" default:"false"`
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
