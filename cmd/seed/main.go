package main

import (
	"context"
	"flag"
	"fmt"

	"sodmax/internal/config"
	"sodmax/internal/db"
	"sodmax/internal/logger"
	"sodmax/internal/service"

	"github.com/jonboulle/clockwork"
)

// seed opens an account on the configured store and prints a token for it
func main() {
	userID := flag.Int64("user", 1234567890, "user id to seed")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	ctx := context.Background()
	backend := db.Open(ctx, cfg)
	defer backend.Close()

	sessions := service.NewSessions(backend.Store, nil, clockwork.NewRealClock(), cfg.Economy)
	defer sessions.Shutdown(ctx)

	sess, err := sessions.Login(ctx, *userID)
	if err != nil {
		logger.Fatal("login failed", "user_id", *userID, "error", err)
	}

	acc, err := sess.Account(ctx)
	if err != nil {
		logger.Fatal("read account failed", "user_id", *userID, "error", err)
	}
	logger.Info("account ready",
		"user_id", acc.UserID,
		"sod", acc.SODBalance,
		"toman", acc.TomanBalance,
		"mining_power", acc.MiningPower,
	)

	token, err := service.NewTokens(cfg.JWTSecret).Generate(acc.UserID)
	if err != nil {
		logger.Fatal("failed to generate token", "error", err)
	}
	fmt.Println(token)
}
