package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	AppPort       string `env:"APP_PORT,default=8080"`
	StorageDriver string `env:"STORAGE_DRIVER,default=postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	LogJSON       bool   `env:"LOG_JSON,default=false"`

	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTAccessTTL  time.Duration `env:"JWT_ACCESS_TTL,default=60m"`
	JWTRefreshTTL time.Duration `env:"JWT_REFRESH_TTL,default=24h"`

	Redis RedisConfig
	Chain ChainConfig
	Price PriceConfig

	WebhookSecret string `env:"WEBHOOK_SECRET"`

	APIRateLimit   int           `env:"API_RATE_LIMIT,default=60"`
	APIRateWindow  time.Duration `env:"API_RATE_WINDOW,default=1m"`
	AuthRateLimit  int           `env:"AUTH_RATE_LIMIT,default=10"`
	AuthRateWindow time.Duration `env:"AUTH_RATE_WINDOW,default=1m"`

	PassCacheTTL    time.Duration `env:"PASS_CACHE_TTL,default=1m"`
	NoncePurgeEvery time.Duration `env:"NONCE_PURGE_INTERVAL,default=10m"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

type ChainConfig struct {
	RPCURL          string        `env:"BSC_RPC_URL"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	RPCTimeout      time.Duration `env:"CHAIN_RPC_TIMEOUT,default=15s"`
	RPS             float64       `env:"CHAIN_RPS,default=10"`
	PollerEnabled   bool          `env:"CHAIN_POLLER_ENABLED,default=true"`
	PollInterval    time.Duration `env:"CHAIN_POLL_INTERVAL,default=5s"`
	PollBackoff     time.Duration `env:"CHAIN_POLL_BACKOFF,default=10s"`
	StartBlock      uint64        `env:"CHAIN_START_BLOCK,default=0"`
	LogChunk        uint64        `env:"CHAIN_LOG_CHUNK,default=2000"`
}

type PriceConfig struct {
	URL      string        `env:"PRICE_API_URL,default=https://api.coinlore.net/api/ticker/?id=2710"`
	CacheTTL time.Duration `env:"PRICE_CACHE_TTL,default=180s"`
}

// Enabled reports whether enough chain settings are present to dial a node.
func (c ChainConfig) Enabled() bool {
	return c.RPCURL != "" && c.ContractAddress != ""
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, l); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if (c.Chain.RPCURL == "") != (c.Chain.ContractAddress == "") {
		return errors.New("BSC_RPC_URL and CONTRACT_ADDRESS must be set together")
	}
	if c.Chain.PollInterval <= 0 || c.Chain.PollBackoff <= 0 {
		return errors.New("chain poll intervals must be positive")
	}
	if c.Chain.LogChunk == 0 {
		return errors.New("CHAIN_LOG_CHUNK must be positive")
	}
	return nil
}
