package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures process level configuration. Everything comes from the
// environment so main stays lean.
type Server struct {
	Addr        string `env:"BOXOFFICE_ADDR" envDefault:":8080"`
	Environment string `env:"BOXOFFICE_ENV" envDefault:"development"`
	LogFormat   string `env:"BOXOFFICE_LOG_FORMAT"`
	LogLevel    string `env:"BOXOFFICE_LOG_LEVEL" envDefault:"info"`
	Version     string `env:"BOXOFFICE_VERSION" envDefault:"dev"`

	// ProvisionLegacyAccounts creates an APPROVED account the first time a
	// verified caller without a local row is seen. Off unless a deployment
	// still has token holders that predate registration.
	ProvisionLegacyAccounts bool `env:"PROVISION_LEGACY_ACCOUNTS" envDefault:"false"`

	Database Database
	Redis    RedisConfig
	Kafka    Kafka
	Keycloak Keycloak
	JWT      JWT
	Invite   Invite
}

// Database is unset (empty URL) in development; stores fall back to memory.
type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"DATABASE_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka mirrors audit records to a SIEM topic when brokers are configured.
type Kafka struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"boxoffice.audit"`
	BufferSize int      `env:"KAFKA_AUDIT_BUFFER" envDefault:"10000"`
}

// Keycloak selects the remote identity directory. With an empty BaseURL the
// in-memory directory is used.
type Keycloak struct {
	BaseURL      string        `env:"KEYCLOAK_BASE_URL"`
	Realm        string        `env:"KEYCLOAK_REALM" envDefault:"boxoffice"`
	ClientID     string        `env:"KEYCLOAK_CLIENT_ID"`
	ClientSecret string        `env:"KEYCLOAK_CLIENT_SECRET"`
	Timeout      time.Duration `env:"KEYCLOAK_TIMEOUT" envDefault:"10s"`
}

// JWT configures envelope verification of tokens from the issuer.
type JWT struct {
	Issuer        string `env:"JWT_ISSUER"`
	Audience      string `env:"JWT_AUDIENCE"`
	HMACSecret    string `env:"JWT_HMAC_SECRET"`
	PublicKeyPEM  string `env:"JWT_PUBLIC_KEY_PEM"`
	ClientID      string `env:"JWT_CLIENT_ID"`
	LeewaySeconds int    `env:"JWT_LEEWAY_SECONDS" envDefault:"30"`
}

type Invite struct {
	SweepInterval time.Duration `env:"INVITE_SWEEP_INTERVAL" envDefault:"5m"`
	SweepLease    time.Duration `env:"INVITE_SWEEP_LEASE" envDefault:"1m"`
}

// FromEnv parses and validates configuration.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// IsDevelopment reports whether client-facing messages may carry full detail.
func (c Server) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c Server) Validate() error {
	if c.JWT.HMACSecret == "" && c.JWT.PublicKeyPEM == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_HMAC_SECRET or JWT_PUBLIC_KEY_PEM is required outside development")
		}
	}
	if c.Keycloak.BaseURL != "" && (c.Keycloak.ClientID == "" || c.Keycloak.ClientSecret == "") {
		return fmt.Errorf("KEYCLOAK_CLIENT_ID and KEYCLOAK_CLIENT_SECRET are required with KEYCLOAK_BASE_URL")
	}
	if c.Invite.SweepInterval <= 0 {
		return fmt.Errorf("INVITE_SWEEP_INTERVAL must be positive")
	}
	return nil
}
