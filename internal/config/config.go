// Package config loads application configuration from config.toml and
// RETAIL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"retailledger/internal/domain/ledger"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Ledger   LedgerConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Worker   WorkerConfig
	Storage  StorageConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool { return c.Env == "development" }

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// StatementTimeout and LockTimeout are applied with SET LOCAL in every transaction.
	StatementTimeout time.Duration
	LockTimeout      time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds bearer token validation settings.
type JWTConfig struct {
	Secret string
	Issuer string
}

// LedgerConfig tunes the consistency engines.
type LedgerConfig struct {
	OperationTimeout  time.Duration
	CreditLimitPolicy string
	BalancePolicy     string
	IdempotencyTTL    time.Duration
	// AuditCompressThreshold is the changes payload size above which audit rows are zstd-compressed.
	AuditCompressThreshold int
}

// Rules converts the configured policies.
func (c LedgerConfig) Rules() ledger.Rules {
	return ledger.Rules{
		CreditLimit:       ledger.RuleMode(c.CreditLimitPolicy),
		SufficientBalance: ledger.RuleMode(c.BalancePolicy),
	}
}

// EngineConfig builds the ledger engine configuration.
func (c LedgerConfig) EngineConfig() ledger.Config {
	cfg := ledger.DefaultConfig()
	cfg.OperationTimeout = c.OperationTimeout
	cfg.Rules = c.Rules()
	return cfg
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	ReconcileInterval  time.Duration
	IdempotencyCleanup time.Duration
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string
}

// Load reads configuration with the following priority (highest first):
// RETAIL_* environment variables, config.toml, built-in defaults.
// Extra search paths are tried before the defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("RETAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			LockTimeout:      v.GetDuration("database.lock_timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Ledger: LedgerConfig{
			OperationTimeout:       v.GetDuration("ledger.operation_timeout"),
			CreditLimitPolicy:      strings.ToLower(v.GetString("ledger.credit_limit_policy")),
			BalancePolicy:          strings.ToLower(v.GetString("ledger.balance_policy")),
			IdempotencyTTL:         v.GetDuration("ledger.idempotency_ttl"),
			AuditCompressThreshold: v.GetInt("ledger.audit_compress_threshold"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Worker: WorkerConfig{
			ReconcileInterval:  v.GetDuration("worker.reconcile_interval"),
			IdempotencyCleanup: v.GetDuration("worker.idempotency_cleanup"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "retailledger")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.lock_timeout", 5*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "retailledger")

	v.SetDefault("ledger.operation_timeout", 5*time.Second)
	v.SetDefault("ledger.credit_limit_policy", string(ledger.RuleReject))
	v.SetDefault("ledger.balance_policy", string(ledger.RuleReject))
	v.SetDefault("ledger.idempotency_ttl", 24*time.Hour)
	v.SetDefault("ledger.audit_compress_threshold", 4096)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("worker.reconcile_interval", 15*time.Minute)
	v.SetDefault("worker.idempotency_cleanup", time.Hour)

	v.SetDefault("storage.driver", DriverPostgres)
}

// Validate checks the configuration for values the services cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Storage.Driver))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if !c.App.IsDevelopment() && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 characters outside development"))
	}

	if !ledger.RuleMode(c.Ledger.CreditLimitPolicy).Valid() {
		errs = append(errs, fmt.Errorf("ledger.credit_limit_policy: unknown mode %q", c.Ledger.CreditLimitPolicy))
	}
	if !ledger.RuleMode(c.Ledger.BalancePolicy).Valid() {
		errs = append(errs, fmt.Errorf("ledger.balance_policy: unknown mode %q", c.Ledger.BalancePolicy))
	}
	if c.Ledger.OperationTimeout <= 0 {
		errs = append(errs, errors.New("ledger.operation_timeout must be positive"))
	}

	if c.Database.MaxConns < 1 {
		errs = append(errs, errors.New("database.max_conns must be at least 1"))
	}
	if c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("database.min_conns must not exceed database.max_conns"))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
