package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Invoice   InvoiceConfig   `mapstructure:"invoice"`
	Fees      FeeConfig       `mapstructure:"fees"`
	Rates     RateConfig      `mapstructure:"rates"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type InvoiceConfig struct {
	Expiry    time.Duration `mapstructure:"expiry"`     // payment window from creation
	BufferPct float64       `mapstructure:"buffer_pct"` // crypto amount buffer against rate drift
}

type FeeConfig struct {
	GlobalPct float64 `mapstructure:"global_pct"` // platform fee, overridable per merchant
}

type RateConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	BaseURL      string        `mapstructure:"base_url"` // CoinGecko-compatible price API
}

type WebhookConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialDelay    time.Duration `mapstructure:"initial_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	DrainLimit      int           `mapstructure:"drain_limit"`
	DrainInterval   time.Duration `mapstructure:"drain_interval"`
	DefaultSecret   string        `mapstructure:"default_secret"` // used when a merchant has no secret
	UserAgent       string        `mapstructure:"user_agent"`
	ClaimLease      time.Duration `mapstructure:"claim_lease"`
}

type TrackerConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	RefreshInterval     time.Duration `mapstructure:"refresh_interval"`
	BatchLimit          int           `mapstructure:"batch_limit"`
	ConfirmationCeiling int           `mapstructure:"confirmation_ceiling"`
	RunTimeout          time.Duration `mapstructure:"run_timeout"`
}

type ProviderConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ProvidersConfig struct {
	QuickNode ProviderConfig `mapstructure:"quicknode"`
	NowNodes  ProviderConfig `mapstructure:"nownodes"`
	GetBlock  ProviderConfig `mapstructure:"getblock"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CPG_ (Crypto Payment
// Gateway). Nested keys use underscore: CPG_DATABASE_HOST, CPG_FEES_GLOBAL_PCT.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "crypto_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("invoice.expiry", "15m")
	v.SetDefault("invoice.buffer_pct", 0.5)
	v.SetDefault("fees.global_pct", 2.0)
	v.SetDefault("rates.ttl", "60s")
	v.SetDefault("rates.fetch_timeout", "10s")
	v.SetDefault("rates.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("webhook.max_retries", 5)
	v.SetDefault("webhook.initial_delay", "1s")
	v.SetDefault("webhook.max_delay", "5m")
	v.SetDefault("webhook.request_timeout", "30s")
	v.SetDefault("webhook.drain_limit", 50)
	v.SetDefault("webhook.drain_interval", "1m")
	v.SetDefault("webhook.default_secret", "webhook-secret")
	v.SetDefault("webhook.user_agent", "CryptoPaymentGateway/1.0")
	v.SetDefault("webhook.claim_lease", "1m")
	v.SetDefault("tracker.poll_interval", "1m")
	v.SetDefault("tracker.refresh_interval", "2m")
	v.SetDefault("tracker.batch_limit", 100)
	v.SetDefault("tracker.confirmation_ceiling", 50)
	v.SetDefault("tracker.run_timeout", "55s")
	v.SetDefault("providers.quicknode.api_key", "")
	v.SetDefault("providers.quicknode.base_url", "https://api.quicknode.com/v1")
	v.SetDefault("providers.quicknode.timeout", "10s")
	v.SetDefault("providers.nownodes.api_key", "")
	v.SetDefault("providers.nownodes.base_url", "https://mainnet.nownodes.io")
	v.SetDefault("providers.nownodes.timeout", "10s")
	v.SetDefault("providers.getblock.api_key", "")
	v.SetDefault("providers.getblock.base_url", "https://go.getblock.io")
	v.SetDefault("providers.getblock.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CPG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CPG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
