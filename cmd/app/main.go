package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/app"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/config"
	httpServer "github.com/xstakup-in-house/digi-drop-backend-api/internal/http"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/http/handlers"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init("info", false)
		logger.Fatal("failed to load config", "error", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	log := logger.Get()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.Fatal("failed to start", "error", err)
	}
	defer a.Close()

	var wg sync.WaitGroup
	if p := a.Poller(cfg.Chain.StartBlock); p != nil && cfg.Chain.PollerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Nonces.RunPurger(ctx, cfg.NoncePurgeEvery, log)
	}()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var head handlers.ChainHead
	if a.Chain != nil {
		head = a.Chain
	}

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Handler: &handlers.Handler{
			AuthService:    a.Auth,
			Ledger:         a.Ledger,
			Catalog:        a.Catalog,
			Prices:         a.Prices,
			TaskService:    a.Tasks,
			ProfileService: a.Profiles,
			RankService:    a.Rank,
			AuditService:   a.Audit,
			Webhook:        a.Webhook,
			Log:            log,
		},
		Health:        handlers.NewHealthHandler(a.Store, head, version),
		Tokens:        a.Tokens,
		Passes:        a.Store,
		Hub:           a.Hub,
		Redis:         a.Redis,
		AllowedOrigin: cfg.AllowedOrigin,
		Limits: httpServer.Limits{
			APIRequests:  cfg.APIRateLimit,
			APIWindow:    cfg.APIRateWindow,
			AuthRequests: cfg.AuthRateLimit,
			AuthWindow:   cfg.AuthRateWindow,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()

	log.Info("server exited")
}
