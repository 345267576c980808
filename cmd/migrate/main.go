package main

import (
	"context"
	"flag"
	"os"

	"sodmax/internal/logger"
	"sodmax/internal/migrations"

	"github.com/joho/godotenv"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	_ = godotenv.Load()
	logger.Init(os.Getenv("LOG_LEVEL"), false)

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	ctx := context.Background()
	if *down {
		if err := migrations.Down(ctx, dsn); err != nil {
			logger.Fatal("rollback failed", "error", err)
		}
		logger.Info("rolled back one migration")
		return
	}

	if err := migrations.Up(ctx, dsn); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}
