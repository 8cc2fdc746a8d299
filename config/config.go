package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	AppEnv      string
	AppMode     string
	StoreDriver string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBMaxConns int

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	OutboxInterval   time.Duration
	OutboxBatch      int
	OutboxMaxRetries int
	OutboxRetention  time.Duration

	ProfileCacheTTL   time.Duration
	MessageRateLimit  int
	MessageRateWindow time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:     getEnv("APP_PORT", "8080"),
		AppEnv:      getEnv("APP_ENV", "development"),
		AppMode:     getEnv("APP_MODE", "debug"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "carelink_chat"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBMaxConns: getEnvAsInt("DB_MAX_CONNS", 10),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		S3Region:     getEnv("S3_REGION", "us-east-1"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),

		OutboxInterval:   getEnvAsDuration("OUTBOX_INTERVAL", 500*time.Millisecond),
		OutboxBatch:      getEnvAsInt("OUTBOX_BATCH", 100),
		OutboxMaxRetries: getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		OutboxRetention:  getEnvAsDuration("OUTBOX_RETENTION", 72*time.Hour),

		ProfileCacheTTL:   getEnvAsDuration("PROFILE_CACHE_TTL", 10*time.Minute),
		MessageRateLimit:  getEnvAsInt("MESSAGE_RATE_LIMIT", 30),
		MessageRateWindow: getEnvAsDuration("MESSAGE_RATE_WINDOW", time.Minute),
	}
}

// DatabaseURL builds a postgres connection string for pgx.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// S3Enabled reports whether attachment uploads are configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
