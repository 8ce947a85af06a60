package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// Config is the whole runtime configuration of the API service.
type Config struct {
	Port          string
	Env           string
	JWTSecret     string
	TokenTTL      time.Duration
	StorageDriver string
	RedisURL      string
	MongoURI      string
	MongoDatabase string
	CORSOrigins   []string
	LogLevel      string
	LogFormat     string
	Seed          bool
	SeedReset     bool
	OTP           OTP
}

// OTP tunes the one-time code used to verify signup emails.
type OTP struct {
	TTL            time.Duration
	MaxAttempts    int // 0 means unlimited
	ResendInterval time.Duration
	ResendBurst    int
	WebhookURL     string
}

func (c Config) Production() bool { return c.Env == EnvProduction }

// Load reads a .env file when present and then the environment.
func Load() (Config, bool) {
	found := godotenv.Load() == nil
	return FromEnv(), found
}

// FromEnv builds a Config from environment variables so main stays lean.
// JWT_SECRET falls back to a development value; production must set it.
func FromEnv() Config {
	return Config{
		Port:          getString("API_PORT", "8080"),
		Env:           getString("APP_ENV", EnvDevelopment),
		JWTSecret:     getString("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),
		StorageDriver: getString("STORAGE_DRIVER", DriverMemory),
		RedisURL:      os.Getenv("REDIS_URL"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: getString("MONGO_DATABASE", "bloodbank"),
		CORSOrigins:   getList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:      getString("LOG_LEVEL", "info"),
		LogFormat:     getString("LOG_FORMAT", "json"),
		Seed:          getBool("SEED_DATA", true),
		SeedReset:     getBool("SEED_RESET", false),
		OTP: OTP{
			TTL:            getDuration("OTP_TTL", 10*time.Minute),
			MaxAttempts:    getInt("OTP_MAX_ATTEMPTS", 0),
			ResendInterval: getDuration("OTP_RESEND_INTERVAL", 30*time.Second),
			ResendBurst:    getInt("OTP_RESEND_BURST", 3),
			WebhookURL:     os.Getenv("OTP_WEBHOOK_URL"),
		},
	}
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
