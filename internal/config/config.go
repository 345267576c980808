package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sodmax/internal/domain"
	"sodmax/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	AppPort      string
	StoreBackend string
	DatabaseURL  string
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	JWTSecret    string
	AdminUserIDs []int64
	LogLevel     string
	LogJSON      bool

	APIRateLimit  int
	APIRateWindow time.Duration
	MineRateLimit int

	Economy Economy
}

// Economy holds every tunable of the reward economy
type Economy struct {
	InitialMiningPower int64
	InitialSOD         int64
	InitialToman       int64

	AutoMineInterval time.Duration
	AutoMineRate     decimal.Decimal

	Boost domain.BoostOffer

	UpgradeCost      int64
	UpgradePowerStep int64
	UpgradeLevelStep int

	ReferralBonus   int64
	MinWithdrawal   int64
	DailyRewardBase int64

	Location *time.Location
	Missions []domain.MissionTemplate
}

// DefaultMissions is the mission catalog every account starts with
func DefaultMissions() []domain.MissionTemplate {
	return []domain.MissionTemplate{
		{ID: "mine_10", Type: domain.EventManualMine, Title: "Mine 10 times", Period: domain.PeriodOneTime, Target: 10, Reward: 500},
		{ID: "mine_daily_5", Type: domain.EventManualMine, Title: "Mine 5 times today", Period: domain.PeriodDaily, Target: 5, Reward: 200},
		{ID: "upgrade_1", Type: domain.EventUpgrade, Title: "Upgrade your miner", Period: domain.PeriodOneTime, Target: 1, Reward: 300},
		{ID: "boost_1", Type: domain.EventBoost, Title: "Activate a boost", Period: domain.PeriodOneTime, Target: 1, Reward: 200},
		{ID: "invite_3", Type: domain.EventReferralInvite, Title: "Invite 3 friends", Period: domain.PeriodOneTime, Target: 3, Reward: 1500},
	}
}

// DefaultEconomy returns the economy used when no env overrides are present
func DefaultEconomy() Economy {
	return Economy{
		InitialMiningPower: 5,
		AutoMineInterval:   5 * time.Second,
		AutoMineRate:       decimal.New(5, -1),
		Boost: domain.BoostOffer{
			Cost:       5000,
			Multiplier: decimal.NewFromInt(2),
			Duration:   time.Hour,
		},
		UpgradeCost:      50000,
		UpgradePowerStep: 5,
		UpgradeLevelStep: 1,
		ReferralBonus:    1000,
		MinWithdrawal:    10000,
		DailyRewardBase:  100,
		Location:         time.UTC,
		Missions:         DefaultMissions(),
	}
}

// Load reads configuration from env (and .env when present)
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		StoreBackend:  getEnv("STORE_BACKEND", StoreMemory),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPass:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_FORMAT") == "json",
		APIRateLimit:  getInt("API_RATE_LIMIT", 120),
		APIRateWindow: time.Duration(getInt("API_RATE_WINDOW_SECONDS", 60)) * time.Second,
		MineRateLimit: getInt("MINE_RATE_LIMIT", 60),
		Economy:       loadEconomy(),
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	switch cfg.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			logger.Fatal("DATABASE_URL is not set")
		}
	case StoreRedis:
		if cfg.RedisAddr == "" {
			logger.Fatal("REDIS_ADDR is not set")
		}
	default:
		logger.Fatal("unknown STORE_BACKEND", "backend", cfg.StoreBackend)
	}

	// comma separated list of user ids allowed to settle withdrawals
	if v := os.Getenv("ADMIN_USER_IDS"); v != "" {
		for _, idStr := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64); err == nil {
				cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
			}
		}
	}

	return cfg
}

// IsAdmin reports whether userID may run admin operations
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func loadEconomy() Economy {
	e := DefaultEconomy()

	e.InitialMiningPower = getInt64("INITIAL_MINING_POWER", e.InitialMiningPower)
	e.InitialSOD = getInt64("INITIAL_SOD", e.InitialSOD)
	e.InitialToman = getInt64("INITIAL_TOMAN", e.InitialToman)

	e.AutoMineInterval = time.Duration(getInt64("AUTO_MINE_INTERVAL_SECONDS", int64(e.AutoMineInterval/time.Second))) * time.Second
	e.AutoMineRate = getDecimal("AUTO_MINE_RATE", e.AutoMineRate)

	e.Boost.Cost = getInt64("BOOST_COST", e.Boost.Cost)
	e.Boost.Multiplier = getDecimal("BOOST_MULTIPLIER", e.Boost.Multiplier)
	e.Boost.Duration = time.Duration(getInt64("BOOST_DURATION_SECONDS", int64(e.Boost.Duration/time.Second))) * time.Second

	e.UpgradeCost = getInt64("UPGRADE_COST", e.UpgradeCost)
	e.UpgradePowerStep = getInt64("UPGRADE_POWER_STEP", e.UpgradePowerStep)

	e.ReferralBonus = getInt64("REFERRAL_BONUS", e.ReferralBonus)
	e.MinWithdrawal = getInt64("MIN_WITHDRAWAL", e.MinWithdrawal)
	e.DailyRewardBase = getInt64("DAILY_REWARD_BASE", e.DailyRewardBase)

	if tz := os.Getenv("ECONOMY_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			logger.Fatal("invalid ECONOMY_TIMEZONE", "timezone", tz, "error", err)
		}
		e.Location = loc
	}

	if !e.Boost.Valid() {
		logger.Fatal("invalid boost configuration", "cost", e.Boost.Cost, "multiplier", e.Boost.Multiplier.String())
	}
	if e.AutoMineInterval <= 0 {
		logger.Fatal("AUTO_MINE_INTERVAL_SECONDS must be positive")
	}

	return e
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && d.IsPositive() {
			return d
		}
	}
	return fallback
}
