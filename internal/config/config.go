// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Server
	ServerPort        string
	BaseURL           string
	CORSAllowedOrigin string
	LogLevel          string
	// TrustProxyHeaders がtrueの場合のみX-Forwarded-For等からクライアントIPを取る。
	TrustProxyHeaders bool

	// Cache
	RedisURL        string
	ProfileCacheTTL time.Duration

	// Mail
	SendGridAPIKey   string
	MailFromAddress  string
	MailFromName     string
	AdminNotifyEmail string

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitEnroll  int
	RateLimitContact int

	// Worker
	ContactRetentionDays int
	CleanupSchedule      string
	DigestSchedule       string

	// Analytics
	AnalyticsWindowDays int
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はまとめてエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "")
	cfg.JWTAudience = getEnvString("JWT_AUDIENCE", "authenticated")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.TrustProxyHeaders = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute)
	cfg.SendGridAPIKey = getEnvString("SENDGRID_API_KEY", "")
	cfg.MailFromAddress = getEnvString("MAIL_FROM_ADDRESS", "no-reply@learnhub.local")
	cfg.MailFromName = getEnvString("MAIL_FROM_NAME", "LearnHub")
	cfg.AdminNotifyEmail = getEnvString("ADMIN_NOTIFY_EMAIL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitEnroll = getEnvInt("RATE_LIMIT_ENROLL", 10)
	cfg.RateLimitContact = getEnvInt("RATE_LIMIT_CONTACT", 5)
	cfg.ContactRetentionDays = getEnvInt("CONTACT_RETENTION_DAYS", 365)
	cfg.CleanupSchedule = getEnvString("CLEANUP_SCHEDULE", "0 3 * * *")
	cfg.DigestSchedule = getEnvString("DIGEST_SCHEDULE", "0 9 * * 1-5")
	cfg.AnalyticsWindowDays = getEnvInt("ANALYTICS_WINDOW_DAYS", 30)

	return cfg, nil
}

// ProfileCacheEnabled はRedisによるプロフィールキャッシュが有効かを返す。
func (c *Config) ProfileCacheEnabled() bool {
	return c.RedisURL != "" && c.ProfileCacheTTL > 0
}

// AnalyticsWindow は集計ウィンドウをDurationで返す。
func (c *Config) AnalyticsWindow() time.Duration {
	return time.Duration(c.AnalyticsWindowDays) * 24 * time.Hour
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
