package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ストアドライバ名。
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver   string `envconfig:"STORE_DRIVER" default:"mongo"`
	MongoURI      string `envconfig:"MONGODB_URI"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"tourist-Guide"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`

	// Token
	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// Server
	ServerPort string `envconfig:"PORT" default:"5000"`

	// CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:5174"`

	// Rate Limit（1クライアントあたりの1分間のリクエスト数）
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	// X-Forwarded-Forを信頼するリバースプロキシ（CIDRまたはIP）。空ならRemoteAddrのみを使う
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// Events（AMQP_URLが空の場合はイベントを発行しない）
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"tourist-guide.events"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数名をすべて含むエラーを返す。
// 必須かどうかはSTORE_DRIVERによって変わる。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.CORSAllowedOrigins = trimEmpty(cfg.CORSAllowedOrigins)
	cfg.TrustedProxies = trimEmpty(cfg.TrustedProxies)

	var missing []string

	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want %s, %s or %s)",
			cfg.StoreDriver, DriverMongo, DriverPostgres, DriverMemory)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	return cfg, nil
}

// EventsEnabled はドメインイベントの発行先が設定されているかを返す。
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

func trimEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
