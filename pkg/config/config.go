package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	CORS        CORSConfig
	Log         LogConfig
	Scheduler   SchedulerConfig
	Persistence PersistenceConfig
	Cache       CacheConfig
	Lock        LockConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the slot assignment engine and proposal lifecycle.
type SchedulerConfig struct {
	ProposalTTL          time.Duration
	MaxAttemptsPerClass  int
	RandomSeed           int64
	AvoidFridayAfternoon bool
}

// PersistenceConfig controls retries against the timetable store.
type PersistenceConfig struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// CacheConfig governs caching of history snapshots.
type CacheConfig struct {
	HistoryEnabled bool
	HistoryTTL     time.Duration
}

// LockConfig toggles the per-department session lock held while saving.
type LockConfig struct {
	Enabled bool
	TTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxAttempts := v.GetInt("SCHEDULER_MAX_ATTEMPTS")
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	cfg.Scheduler = SchedulerConfig{
		ProposalTTL:          parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		MaxAttemptsPerClass:  maxAttempts,
		RandomSeed:           v.GetInt64("SCHEDULER_RANDOM_SEED"),
		AvoidFridayAfternoon: v.GetBool("SCHEDULER_AVOID_FRIDAY_DEFAULT"),
	}

	retryAttempts := v.GetInt("PERSISTENCE_RETRY_ATTEMPTS")
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	cfg.Persistence = PersistenceConfig{
		RetryAttempts:  retryAttempts,
		RetryBaseDelay: parseDuration(v.GetString("PERSISTENCE_RETRY_BASE_DELAY"), 60*time.Second),
	}

	cfg.Cache = CacheConfig{
		HistoryEnabled: v.GetBool("HISTORY_CACHE_ENABLED"),
		HistoryTTL:     parseDuration(v.GetString("HISTORY_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Lock = LockConfig{
		Enabled: v.GetBool("SESSION_LOCK_ENABLED"),
		TTL:     parseDuration(v.GetString("SESSION_LOCK_TTL"), 30*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_MAX_ATTEMPTS", 20)
	v.SetDefault("SCHEDULER_RANDOM_SEED", 0)
	v.SetDefault("SCHEDULER_AVOID_FRIDAY_DEFAULT", false)

	v.SetDefault("PERSISTENCE_RETRY_ATTEMPTS", 3)
	v.SetDefault("PERSISTENCE_RETRY_BASE_DELAY", "60s")

	v.SetDefault("HISTORY_CACHE_ENABLED", false)
	v.SetDefault("HISTORY_CACHE_TTL", "5m")
	v.SetDefault("SESSION_LOCK_ENABLED", false)
	v.SetDefault("SESSION_LOCK_TTL", "30s")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
