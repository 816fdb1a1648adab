package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Generator GeneratorConfig
	Notify    NotifyConfig
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

// TimetableConfig governs the editing engine and its sessions.
type TimetableConfig struct {
	Enabled           bool
	CalendarFile      string
	ResolverPolicy    string
	PreserveOverrides bool
	SessionTTL        time.Duration
	SessionSweepSpec  string
	SaveLockTTL       time.Duration
	RosterCacheTTL    time.Duration
}

// GeneratorConfig points at the external schedule generation collaborator.
type GeneratorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// NotifyConfig selects the publish notification transport.
type NotifyConfig struct {
	Driver        string
	TelegramToken string
	TelegramChat  int64
	Workers       int
	Retries       int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
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

	cfg.Timetable = TimetableConfig{
		Enabled:           v.GetBool("ENABLE_TIMETABLE"),
		CalendarFile:      v.GetString("TIMETABLE_CALENDAR_FILE"),
		ResolverPolicy:    strings.ToLower(strings.TrimSpace(v.GetString("TIMETABLE_RESOLVER_POLICY"))),
		PreserveOverrides: v.GetBool("TIMETABLE_PRESERVE_OVERRIDES"),
		SessionTTL:        parseDuration(v.GetString("TIMETABLE_SESSION_TTL"), 2*time.Hour),
		SessionSweepSpec:  v.GetString("TIMETABLE_SESSION_SWEEP"),
		SaveLockTTL:       parseDuration(v.GetString("TIMETABLE_SAVE_LOCK_TTL"), 30*time.Second),
		RosterCacheTTL:    parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Generator = GeneratorConfig{
		URL:     v.GetString("GENERATOR_URL"),
		APIKey:  v.GetString("GENERATOR_API_KEY"),
		Timeout: parseDuration(v.GetString("GENERATOR_TIMEOUT"), 60*time.Second),
	}

	cfg.Notify = NotifyConfig{
		Driver:        strings.ToLower(v.GetString("NOTIFY_DRIVER")),
		TelegramToken: v.GetString("TELEGRAM_TOKEN"),
		TelegramChat:  v.GetInt64("TELEGRAM_CHAT_ID"),
		Workers:       v.GetInt("NOTIFY_WORKERS"),
		Retries:       v.GetInt("NOTIFY_RETRIES"),
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
	v.SetDefault("DB_NAME", "school_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_TIMETABLE", true)
	v.SetDefault("TIMETABLE_CALENDAR_FILE", "")
	v.SetDefault("TIMETABLE_RESOLVER_POLICY", "first_match")
	v.SetDefault("TIMETABLE_PRESERVE_OVERRIDES", false)
	v.SetDefault("TIMETABLE_SESSION_TTL", "2h")
	v.SetDefault("TIMETABLE_SESSION_SWEEP", "@every 5m")
	v.SetDefault("TIMETABLE_SAVE_LOCK_TTL", "30s")
	v.SetDefault("ROSTER_CACHE_TTL", "5m")

	v.SetDefault("GENERATOR_URL", "http://localhost:9000/generate-timetable")
	v.SetDefault("GENERATOR_API_KEY", "")
	v.SetDefault("GENERATOR_TIMEOUT", "60s")

	v.SetDefault("NOTIFY_DRIVER", "log")
	v.SetDefault("TELEGRAM_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)
	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_RETRIES", 2)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
