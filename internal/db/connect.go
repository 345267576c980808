package db

import (
	"context"
	"time"

	"sodmax/internal/config"
	"sodmax/internal/logger"
	"sodmax/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

func Connect(ctx context.Context, dsn string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	if err := db.Ping(ctx); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return db
}

func ConnectRedis(ctx context.Context, addr, password string, db int) *redis.Client {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to ping redis", "addr", addr, "error", err)
	}

	logger.Info("redis connected", "addr", addr)
	return client
}

// Backend is the store selected by STORE_BACKEND plus the connections behind it
type Backend struct {
	Store repository.Store
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// Open connects the configured store backend
func Open(ctx context.Context, cfg *config.Config) *Backend {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool := Connect(ctx, cfg.DatabaseURL)
		return &Backend{Store: repository.NewPostgresStore(pool), Pool: pool}
	case config.StoreRedis:
		client := ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		return &Backend{Store: repository.NewRedisStore(client), Redis: client}
	default:
		logger.Warn("using in-memory store, state is lost on restart")
		return &Backend{Store: repository.NewMemoryStore()}
	}
}

// Checks returns the readiness probes for the open connections
func (b *Backend) Checks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if b.Pool != nil {
		checks["database"] = b.Pool.Ping
	}
	if b.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.Redis.Ping(ctx).Err() }
	}
	return checks
}

func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			logger.Warn("failed to close redis", "error", err)
		}
	}
}
