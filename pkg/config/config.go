// pkg/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Platform app credentials (the shared secret also signs webhooks and cookies)
	APIKey     string
	APISecret  string
	Scopes     []string
	APIVersion string

	// Public origin of this server, used for OAuth redirect and webhook addresses
	AppHost string

	// Session encryption at rest
	EncryptionKey string

	// Storage
	RedisURL       string
	DatabaseURL    string
	SessionBackend string // "postgres", "redis" or "memory"

	// Optional YAML manifest listing extra webhook topics to register after OAuth
	WebhookManifest string

	// Rebuild the authorization cache from persisted sessions on boot.
	// Off by default: a restart then forces every shop back through OAuth.
	RestoreAuthOnStart bool

	StoreTimeout time.Duration
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                env("SHOPBRIDGE_ENV", "dev"),
		HTTPAddr:           env("SHOPBRIDGE_HTTP_ADDR", ":8081"),
		APIKey:             env("SHOPIFY_API_KEY", ""),
		APISecret:          env("SHOPIFY_API_SECRET", ""),
		Scopes:             splitCSV(env("SHOPIFY_SCOPES", "read_products")),
		APIVersion:         env("SHOPIFY_API_VERSION", "2024-01"),
		AppHost:            strings.TrimRight(env("APP_HOST", "http://localhost:8081"), "/"),
		EncryptionKey:      env("ENCRYPTION_KEY", ""),
		RedisURL:           env("REDIS_URL", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
		SessionBackend:     env("SESSION_BACKEND", ""),
		WebhookManifest:    env("WEBHOOK_MANIFEST", ""),
		RestoreAuthOnStart: envBool("RESTORE_AUTH_ON_START", false),
		StoreTimeout:       envDur("STORE_TIMEOUT_SEC", 10) * time.Second,
	}
	if cfg.SessionBackend == "" {
		switch {
		case cfg.DatabaseURL != "":
			cfg.SessionBackend = "postgres"
		case cfg.RedisURL != "":
			cfg.SessionBackend = "redis"
		default:
			cfg.SessionBackend = "memory"
		}
	}
	if cfg.EncryptionKey == "" {
		log.Println("[WARN] ENCRYPTION_KEY not set; session persistence will refuse to start")
	}
	if cfg.DatabaseURL == "" && cfg.RedisURL == "" {
		log.Println("[WARN] DATABASE_URL/REDIS_URL not set; using in-memory stores for dev")
	}
	return cfg
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
