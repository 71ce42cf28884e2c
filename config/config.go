package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Discord      DiscordConfig
	Registration RegistrationConfig
	Admin        AdminConfig
}

// ServerConfig holds HTTP server settings for the registration web process.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/zoneshift?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DiscordConfig holds bot credentials and endpoints.
type DiscordConfig struct {
	BotToken   string
	APIBase    string
	GatewayURL string
}

// RegistrationConfig holds the handshake window and the waiter poll cadence.
type RegistrationConfig struct {
	AppURL       string // public base URL of the web process, link target for DMs
	Timeout      time.Duration
	PollInterval time.Duration
}

// AdminConfig holds admin API token settings.
type AdminConfig struct {
	JWTSecret   string
	ExpireHours int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
// requireToken is set by the bot process; the web process shares the
// database and redis settings but never talks to Discord itself.
func Load(requireToken bool) (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("ADMIN_JWT_EXPIRE_HOURS", "24"))
	regTimeoutMin := getEnvInt("REGISTRATION_TIMEOUT_MIN", 30)
	pollIntervalSec := getEnvInt("REGISTRATION_POLL_SEC", 10)

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/zoneshift?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "zoneshift"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Discord: DiscordConfig{
			BotToken:   getEnv("DISCORD_TOKEN", ""),
			APIBase:    getEnv("DISCORD_API_BASE", "https://discord.com/api/v10"),
			GatewayURL: getEnv("DISCORD_GATEWAY_URL", "wss://gateway.discord.gg/?v=10&encoding=json"),
		},
		Registration: RegistrationConfig{
			AppURL:       strings.TrimSuffix(getEnv("APP_URL", "http://localhost:8080"), "/"),
			Timeout:      time.Duration(regTimeoutMin) * time.Minute,
			PollInterval: time.Duration(pollIntervalSec) * time.Second,
		},
		Admin: AdminConfig{
			JWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
			ExpireHours: jwtExpire,
		},
	}

	if requireToken && cfg.Discord.BotToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
