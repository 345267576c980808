package http

import (
	"sodmax/internal/config"
	"sodmax/internal/http/handlers"
	"sodmax/internal/http/middleware"
	"sodmax/internal/service"
	"sodmax/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the routes need from the process
type Deps struct {
	Config   *config.Config
	Sessions *service.Sessions
	Tokens   *service.Tokens
	Hub      *ws.Hub
	Limiter  *middleware.RateLimiter
	Checks   map[string]handlers.Pinger
	Version  string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := handlers.NewHandler(d.Sessions, d.Hub)
	healthHandler := handlers.NewHealthHandler(d.Checks, d.Version)

	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Notification stream
	r.GET("/ws", ws.HandleWS(d.Hub, d.Tokens))

	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.ByIP(d.Config.APIRateLimit, d.Config.APIRateWindow))
	v1.Use(middleware.JWT(d.Tokens))
	registerAPIRoutes(v1, h, d)
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, d Deps) {
	api.GET("/account", h.Account)
	api.GET("/transactions", h.Transactions)
	api.GET("/notifications", h.Notifications)

	// Mining actions are limited per user on top of the per-IP limit
	mining := api.Group("/mining")
	mining.Use(d.Limiter.ByUser(d.Config.MineRateLimit, d.Config.APIRateWindow))
	{
		mining.POST("/mine", h.Mine)
		mining.POST("/auto", h.ToggleAutoMining)
		mining.POST("/boost", h.ActivateBoost)
		mining.POST("/upgrade", h.Upgrade)
	}

	api.GET("/missions", h.Missions)
	api.POST("/missions/daily/claim", h.ClaimDailyReward)
	api.POST("/missions/:id/claim", h.ClaimMission)

	api.GET("/referrals", h.Referrals)
	api.POST("/referrals", h.RegisterInvite)
	api.POST("/referrals/:id/confirm", h.ConfirmReferral)

	api.POST("/wallet/withdraw", h.Withdraw)

	api.POST("/session/logout", h.Logout)
	api.POST("/session/reset", h.Reset)

	admin := api.Group("/admin")
	admin.Use(middleware.Admin(d.Config.IsAdmin))
	{
		admin.POST("/users/:user/withdrawals/:id/complete", h.CompleteWithdrawal)
		admin.POST("/users/:user/withdrawals/:id/fail", h.FailWithdrawal)
	}
}
