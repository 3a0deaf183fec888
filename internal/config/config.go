package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port      string
	JWTSecret string
	LogLevel  string
	LogFormat string

	DBDriver   string
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	BOMTimeout        time.Duration
	BOMDefaultBaseURL string
	SweepInterval     time.Duration

	// Seed credentials written to the default company's config on first boot
	DefaultCompanyID uint
	BOMAPIKey        string
	BOMAPISecret     string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file loaded")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./zns.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "zns"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "zns.history"),

		BOMTimeout:        time.Duration(getEnvInt("BOM_TIMEOUT_SECONDS", 30)) * time.Second,
		BOMDefaultBaseURL: getEnv("BOM_DEFAULT_BASE_URL", "https://zns.bom.asia/api"),
		SweepInterval:     time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute,

		DefaultCompanyID: uint(getEnvInt("DEFAULT_COMPANY_ID", 1)),
		BOMAPIKey:        getEnv("BOM_API_KEY", ""),
		BOMAPISecret:     getEnv("BOM_API_SECRET", ""),
	}
}

// RedisEnabled reports whether a status cache should be wired.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// KafkaEnabled reports whether history events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("invalid int %q, using default %d", v, fallback)
		return fallback
	}
	return i
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
