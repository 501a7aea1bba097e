package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL           MySQLConfig
	Redis           RedisConfig
	JWT             JWTConfig
	Migrate         bool
	HTTPAddr        string
	HeartbeatWorker HeartbeatWorkerConfig
	AutoReview      AutoReviewConfig
	QueueTrigger    QueueTriggerConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// HeartbeatWorkerConfig holds heartbeat scheduler configuration
type HeartbeatWorkerConfig struct {
	Enabled              bool
	IntervalMin          int // shared probe interval per agent
	StaggerMin           int // per-agent offset step
	TimeoutSec           int // liveness call timeout
	OfflineFailThreshold int // consecutive probe failures before offline
}

// AutoReviewConfig holds auto-review check bounds
type AutoReviewConfig struct {
	MinContentLength int
	MaxTokens        int64
	SoftCostLimitUSD float64
	HardCostLimitUSD float64
}

// QueueTriggerConfig holds production queue trigger configuration
type QueueTriggerConfig struct {
	Enabled     bool
	QueueFloor  int // trigger when todo+in_progress drops to this count or below
	GuardTTLSec int // single-flight window
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "go_crew"),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		HeartbeatWorker: HeartbeatWorkerConfig{
			Enabled:              getEnv("HEARTBEAT_WORKER_ENABLED", "1") == "1",
			IntervalMin:          getEnvInt("HEARTBEAT_INTERVAL_MIN", 15),
			StaggerMin:           getEnvInt("HEARTBEAT_STAGGER_MIN", 2),
			TimeoutSec:           getEnvInt("HEARTBEAT_TIMEOUT_SEC", 10),
			OfflineFailThreshold: getEnvInt("HEARTBEAT_OFFLINE_FAIL_THRESHOLD", 3),
		},
		AutoReview: AutoReviewConfig{
			MinContentLength: getEnvInt("REVIEW_MIN_CONTENT_LENGTH", 200),
			MaxTokens:        int64(getEnvInt("REVIEW_MAX_TOKENS", 200000)),
			SoftCostLimitUSD: getEnvFloat("REVIEW_SOFT_COST_LIMIT_USD", 1.0),
			HardCostLimitUSD: getEnvFloat("REVIEW_HARD_COST_LIMIT_USD", 5.0),
		},
		QueueTrigger: QueueTriggerConfig{
			Enabled:     getEnv("QUEUE_TRIGGER_ENABLED", "1") == "1",
			QueueFloor:  getEnvInt("QUEUE_TRIGGER_FLOOR", 3),
			GuardTTLSec: getEnvInt("QUEUE_TRIGGER_GUARD_TTL_SEC", 300),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HeartbeatWorker.StaggerMin < 1 {
		return nil, fmt.Errorf("HEARTBEAT_STAGGER_MIN must be >= 1")
	}

	return cfg, nil
}

// LoadFromINI loads configuration from an INI file with environment variable
// override. Precedence: ENV > INI > default.
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	getValueFloat := func(envKey, iniSection, iniKey string, defaultValue float64) float64 {
		if value := os.Getenv(envKey); value != "" {
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				return f
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Float64(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 1440),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "go_crew"),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		HeartbeatWorker: HeartbeatWorkerConfig{
			Enabled:              getValueBool("HEARTBEAT_WORKER_ENABLED", "heartbeat", "enabled", true),
			IntervalMin:          getValueInt("HEARTBEAT_INTERVAL_MIN", "heartbeat", "interval_min", 15),
			StaggerMin:           getValueInt("HEARTBEAT_STAGGER_MIN", "heartbeat", "stagger_min", 2),
			TimeoutSec:           getValueInt("HEARTBEAT_TIMEOUT_SEC", "heartbeat", "timeout_sec", 10),
			OfflineFailThreshold: getValueInt("HEARTBEAT_OFFLINE_FAIL_THRESHOLD", "heartbeat", "offline_fail_threshold", 3),
		},
		AutoReview: AutoReviewConfig{
			MinContentLength: getValueInt("REVIEW_MIN_CONTENT_LENGTH", "auto_review", "min_content_length", 200),
			MaxTokens:        int64(getValueInt("REVIEW_MAX_TOKENS", "auto_review", "max_tokens", 200000)),
			SoftCostLimitUSD: getValueFloat("REVIEW_SOFT_COST_LIMIT_USD", "auto_review", "soft_cost_limit_usd", 1.0),
			HardCostLimitUSD: getValueFloat("REVIEW_HARD_COST_LIMIT_USD", "auto_review", "hard_cost_limit_usd", 5.0),
		},
		QueueTrigger: QueueTriggerConfig{
			Enabled:     getValueBool("QUEUE_TRIGGER_ENABLED", "queue_trigger", "enabled", true),
			QueueFloor:  getValueInt("QUEUE_TRIGGER_FLOOR", "queue_trigger", "floor", 3),
			GuardTTLSec: getValueInt("QUEUE_TRIGGER_GUARD_TTL_SEC", "queue_trigger", "guard_ttl_sec", 300),
		},
	}

	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
