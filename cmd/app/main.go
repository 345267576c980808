package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sodmax/internal/config"
	"sodmax/internal/db"
	httpServer "sodmax/internal/http"
	"sodmax/internal/http/handlers"
	"sodmax/internal/http/middleware"
	"sodmax/internal/logger"
	"sodmax/internal/migrations"
	"sodmax/internal/service"
	"sodmax/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StoreBackend == config.StorePostgres && os.Getenv("AUTO_MIGRATE") != "false" {
		if err := migrations.Up(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal("failed to apply migrations", "error", err)
		}
	}

	backend := db.Open(ctx, cfg)
	defer backend.Close()

	hub := ws.NewHub()
	sessions := service.NewSessions(backend.Store, hub, clockwork.NewRealClock(), cfg.Economy)
	tokens := service.NewTokens(cfg.JWTSecret)

	checks := make(map[string]handlers.Pinger)
	for name, fn := range backend.Checks() {
		checks[name] = handlers.PingFunc(fn)
	}

	if os.Getenv("GIN_MODE") == "" && cfg.LogJSON {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Deps{
		Config:   cfg,
		Sessions: sessions,
		Tokens:   tokens,
		Hub:      hub,
		Limiter:  middleware.ConnectRateLimiter(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB),
		Checks:   checks,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreBackend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// timers stop after the last request so no credit lands on a closed store
		sessions.Shutdown(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}
