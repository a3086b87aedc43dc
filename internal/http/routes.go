package http

import (
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/http/handlers"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/http/middleware"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

// Limits configures the rate limiters.
type Limits struct {
	APIRequests  int
	APIWindow    time.Duration
	AuthRequests int
	AuthWindow   time.Duration
}

type Deps struct {
	Handler       *handlers.Handler
	Health        *handlers.HealthHandler
	Tokens        *service.TokenIssuer
	Passes        middleware.PassChecker
	Hub           *ws.Hub
	Redis         *redis.Client
	AllowedOrigin string
	Limits        Limits
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := d.Handler
	r.Use(middleware.CORS(d.AllowedOrigin))

	// Health checks and metrics (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Live feed
	r.GET("/ws", ws.HandleWS(d.Hub, d.Tokens, d.AllowedOrigin))

	authed := middleware.JWT(d.Tokens)
	passHolder := middleware.RequirePass(d.Passes)

	v1 := r.Group("/api/v1")

	// The relay is authenticated by signature, not rate limited per IP.
	v1.POST("/webhooks/chain", h.ChainWebhook)

	api := v1.Group("")
	api.Use(middleware.RedisRateLimit(d.Redis, d.Limits.APIRequests, d.Limits.APIWindow))

	auth := api.Group("/auth")
	auth.Use(middleware.RedisRateLimit(d.Redis, d.Limits.AuthRequests, d.Limits.AuthWindow))
	{
		auth.GET("/nonce", h.Nonce)
		auth.POST("/wallet-login", h.WalletLogin)
		auth.POST("/refresh", h.Refresh)
	}

	passes := api.Group("/passes")
	{
		passes.GET("", h.ListPasses)
		passes.GET("/:uuid", h.GetPass)
		passes.POST("/verify", authed, middleware.UserRateLimit(d.Redis, d.Limits.AuthRequests, d.Limits.AuthWindow), h.VerifyPass)
	}

	tasks := api.Group("/tasks")
	tasks.Use(authed, passHolder)
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("/:id/start", h.StartTask)
		tasks.POST("/:id/complete", h.CompleteTask)
	}

	profile := api.Group("/profile")
	profile.Use(authed)
	{
		profile.GET("", h.MyProfile)
		profile.PATCH("", passHolder, h.UpdateProfile)
		profile.GET("/stats", h.ProfileStats)
	}

	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/leaderboard/rank", authed, h.GetMyRank)

	me := api.Group("/me")
	me.Use(authed)
	{
		me.GET("/transactions", h.MyTransactions)
		me.GET("/activity", h.MyActivity)
	}
}
