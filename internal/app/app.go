// Package app wires configuration into stores, the chain client and services.
// Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/config"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/db"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/ingest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/migrations"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/price"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository/memory"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/ws"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

type App struct {
	Config *config.Config
	Log    *slog.Logger

	Pool  *pgxpool.Pool
	Store repository.Store
	Redis *redis.Client
	Chain chain.Client

	Hub      *ws.Hub
	Tokens   *service.TokenIssuer
	Audit    *service.AuditService
	Points   *service.PointsEngine
	Catalog  *service.PassCatalog
	Ledger   *service.Ledger
	Nonces   *service.NonceService
	Auth     *service.AuthService
	Tasks    *service.TaskService
	Rank     *service.RankService
	Profiles *service.ProfileService
	Prices   *price.Oracle
	Webhook  *ingest.Webhook

	closers []func()
}

// New connects every backing service named in cfg. Postgres migrations are
// applied on connect. The chain client is nil when no node is configured.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			log.Info("applied migrations", "names", applied)
		}
		a.Pool = pool
		a.Store = repository.NewPostgres(pool)
	default:
		log.Warn("using in-memory storage; data is lost on restart")
		a.Store = memory.New()
	}

	rdb, err := db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		// rate limits and the price cache fall back to process memory
		log.Warn("redis unavailable", "error", err)
	}
	if rdb != nil {
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	if cfg.Chain.Enabled() {
		client, err := chain.Dial(ctx, chain.EthConfig{
			RPCURL:          cfg.Chain.RPCURL,
			ContractAddress: cfg.Chain.ContractAddress,
			Timeout:         cfg.Chain.RPCTimeout,
			RPS:             cfg.Chain.RPS,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Chain = client
		a.closers = append(a.closers, client.Close)
		log.Info("chain client ready", "contract", client.ContractAddress().Hex())
	} else {
		log.Warn("chain not configured; verification and polling are disabled")
	}

	a.Hub = ws.NewHub(log)
	a.Tokens = service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	a.Audit = service.NewAuditService(a.Store, log)
	a.Points = service.NewPointsEngine(a.Store, a.Audit, a.Hub)
	a.Catalog = service.NewPassCatalog(a.Store, cfg.PassCacheTTL)
	a.Ledger = service.NewLedger(a.Store, a.Chain, a.Catalog, a.Points, a.Audit, a.Hub, log)
	a.Nonces = service.NewNonceService(a.Store)
	a.Auth = service.NewAuthService(a.Store, a.Nonces, a.Tokens, a.Points, a.Audit, log)
	a.Tasks = service.NewTaskService(a.Store, a.Points, a.Audit, log)
	a.Rank = service.NewRankService(a.Store)
	a.Profiles = service.NewProfileService(a.Store, a.Catalog, a.Rank, a.Tasks, log)
	a.Prices = price.NewOracle(cfg.Price.URL, cfg.Price.CacheTTL, a.Redis, log)
	a.Webhook = ingest.NewWebhook(cfg.WebhookSecret, a.Chain, a.Ledger, log)
	return a, nil
}

// Poller returns a chain poller configured from cfg, or nil without a chain client.
func (a *App) Poller(startBlock uint64) *ingest.Poller {
	if a.Chain == nil {
		return nil
	}
	return ingest.NewPoller(a.Chain, a.Store, a.Ledger, ingest.PollerConfig{
		Interval:   a.Config.Chain.PollInterval,
		Backoff:    a.Config.Chain.PollBackoff,
		StartBlock: startBlock,
		Chunk:      a.Config.Chain.LogChunk,
	}, a.Log)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
