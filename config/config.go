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
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Realtime  RealtimeConfig
	Access    AccessConfig
	AWS       AWSConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
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
	PoolSize int
}

// JWTConfig holds JWT signing and validation settings.
// Session tokens are short lived; broadcast tokens authorize host overlays for one webinar.
type JWTConfig struct {
	Secret               string
	SessionExpireHours   int
	BroadcastExpireHours int
}

// AuthConfig holds login settings.
type AuthConfig struct {
	// BootstrapAdminMobile is promoted to admin the first time it logs in.
	BootstrapAdminMobile string
	// ForceLogoutLocation is sent to evicted clients in ForceDisconnect.
	ForceLogoutLocation string
}

// RealtimeConfig holds WebSocket hub settings.
type RealtimeConfig struct {
	PingInterval    time.Duration
	PongWait        time.Duration
	SendBuffer      int
	MaxMessageBytes int64
	// Backplane is "" (single instance) or "redis".
	Backplane string
}

// AccessConfig holds access window settings.
type AccessConfig struct {
	WindowHours int
}

// Window returns the join window length after scheduled start.
func (c AccessConfig) Window() time.Duration {
	if c.WindowHours <= 0 {
		return 5 * time.Hour
	}
	return time.Duration(c.WindowHours) * time.Hour
}

// AWSConfig holds AWS credentials and the overlay asset bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	OverlayBucket        string
	PresignExpireMinutes int
}

// RateLimitConfig bounds login attempts per client IP.
type RateLimitConfig struct {
	LoginPerSecond float64
	LoginBurst     int
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
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "webinar_live"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		JWT: JWTConfig{
			Secret:               getEnv("JWT_SECRET", "change-me-in-production"),
			SessionExpireHours:   getEnvInt("JWT_SESSION_EXPIRE_HOURS", 5),
			BroadcastExpireHours: getEnvInt("JWT_BROADCAST_EXPIRE_HOURS", 24),
		},
		Auth: AuthConfig{
			BootstrapAdminMobile: getEnv("BOOTSTRAP_ADMIN_MOBILE", ""),
			ForceLogoutLocation:  getEnv("FORCE_LOGOUT_LOCATION", "/login"),
		},
		Realtime: RealtimeConfig{
			PingInterval:    time.Duration(getEnvInt("WS_PING_INTERVAL_SEC", 30)) * time.Second,
			PongWait:        time.Duration(getEnvInt("WS_CLIENT_TIMEOUT_SEC", 60)) * time.Second,
			SendBuffer:      getEnvInt("WS_SEND_BUFFER", 256),
			MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 65536)),
			Backplane:       strings.ToLower(getEnv("REALTIME_BACKPLANE", "")),
		},
		Access: AccessConfig{
			WindowHours: getEnvInt("ACCESS_WINDOW_HOURS", 5),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			OverlayBucket:        getEnv("AWS_S3_OVERLAY_BUCKET", "webinar-overlays"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		RateLimit: RateLimitConfig{
			LoginPerSecond: getEnvFloat("LOGIN_RATE_PER_SEC", 1),
			LoginBurst:     getEnvInt("LOGIN_RATE_BURST", 5),
		},
	}
	if cfg.Realtime.Backplane != "" && cfg.Realtime.Backplane != "redis" {
		return nil, fmt.Errorf("unsupported REALTIME_BACKPLANE %q", cfg.Realtime.Backplane)
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

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
