package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/domain/ledger"
)

func emptyDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func TestLoad_DefaultsWithRequiredEnv(t *testing.T) {
	t.Chdir(emptyDir(t))
	t.Setenv("RETAIL_DATABASE_DSN", "postgres://u:p@localhost:5432/retail")
	t.Setenv("RETAIL_JWT_SECRET", "dev-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Ledger.OperationTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, 4096, cfg.Ledger.AuditCompressThreshold)
	assert.Equal(t, ledger.DefaultRules(), cfg.Ledger.Rules())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := emptyDir(t)
	t.Chdir(dir)
	toml := `
[app]
port = "9090"

[storage]
driver = "memory"

[jwt]
secret = "from-file"

[ledger]
operation_timeout = "2s"
credit_limit_policy = "warn"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))
	t.Setenv("RETAIL_APP_PORT", "7070")
	t.Setenv("RETAIL_LEDGER_BALANCE_POLICY", "OFF")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Second, cfg.Ledger.OperationTimeout)

	engine := cfg.Ledger.EngineConfig()
	assert.Equal(t, ledger.RuleWarn, engine.Rules.CreditLimit)
	assert.Equal(t, ledger.RuleOff, engine.Rules.SufficientBalance)
	assert.Equal(t, 2*time.Second, engine.OperationTimeout)
	assert.Equal(t, "CD", engine.Numbering.Prefix)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "production"},
			Database: DatabaseConfig{DSN: "postgres://x", MaxConns: 10, MinConns: 1},
			JWT:      JWTConfig{Secret: "0123456789abcdef0123456789abcdef"},
			Ledger: LedgerConfig{
				OperationTimeout:  time.Second,
				CreditLimitPolicy: "reject",
				BalancePolicy:     "reject",
			},
			Storage: StorageConfig{Driver: DriverPostgres},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"memory needs no dsn", func(c *Config) { c.Database.DSN = ""; c.Storage.Driver = DriverMemory }, ""},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
		{"short secret in production", func(c *Config) { c.JWT.Secret = "short" }, "jwt.secret"},
		{"short secret in development", func(c *Config) { c.JWT.Secret = "short"; c.App.Env = "development" }, ""},
		{"unknown policy", func(c *Config) { c.Ledger.BalancePolicy = "ignore" }, "ledger.balance_policy"},
		{"zero timeout", func(c *Config) { c.Ledger.OperationTimeout = 0 }, "ledger.operation_timeout"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, "redis.addr"},
		{"min above max", func(c *Config) { c.Database.MinConns = 20 }, "database.min_conns"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
