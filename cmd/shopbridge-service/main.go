// cmd/shopbridge-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopbridge/internal/authflow"
	"shopbridge/internal/settings"
	"shopbridge/internal/webhooks"
	"shopbridge/pkg/authcache"
	"shopbridge/pkg/config"
	"shopbridge/pkg/db"
	"shopbridge/pkg/logger"
	"shopbridge/pkg/middleware"
	"shopbridge/pkg/platform"
	"shopbridge/pkg/sessions"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if cfg.APIKey == "" || cfg.APISecret == "" {
		log.Fatalw("missing platform credentials", "hint", "set SHOPIFY_API_KEY and SHOPIFY_API_SECRET")
	}
	codec, err := sessions.NewCodec(cfg.EncryptionKey)
	if err != nil {
		log.Fatalw("encryption codec", "err", err)
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	var sessionStore sessions.Store
	switch cfg.SessionBackend {
	case "postgres":
		if pool == nil {
			log.Fatalw("postgres session backend requires DATABASE_URL")
		}
		if err := sessions.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("session schema", "err", err)
		}
		sessionStore = sessions.NewPostgresStore(pool, codec, log)
	case "redis":
		if rdb == nil {
			log.Fatalw("redis session backend requires REDIS_URL")
		}
		sessionStore = sessions.NewRedisStore(rdb, codec, log)
	default:
		log.Warnw("using in-memory session store", "backend", cfg.SessionBackend)
		sessionStore = sessions.NewMemoryStore(codec)
	}

	var settingStore settings.Store
	if pool != nil {
		if err := settings.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("settings schema", "err", err)
		}
		settingStore = settings.NewPostgresStore(pool)
	} else {
		settingStore = settings.NewMemoryStore()
	}

	cache := authcache.New()
	if cfg.RestoreAuthOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
		if err := cache.Rehydrate(ctx, sessionStore, log); err != nil {
			log.Warnw("rehydrate", "err", err)
		}
		cancel()
	}

	client := platform.NewClient(cfg.APIVersion)
	subs, err := platform.LoadWebhookManifest(cfg.WebhookManifest)
	if err != nil {
		log.Fatalw("webhook manifest", "err", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing())
	r.Use(middleware.WithAppSession(cfg.APISecret))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	authflow.NewHandler(log, cfg, cache, sessionStore, client, subs).Register(r)
	webhooks.NewHandler(log, cfg.APISecret, cache, sessionStore).Register(r)
	settings.NewHandler(log, cache, sessionStore, settingStore, client).Register(r)

	// Embedded-app entry: unauthorized shops are sent through the handshake.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" || !cache.IsAuthorized(shop) {
			http.Redirect(w, r, "/auth?shop="+url.QueryEscape(shop), http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<!doctype html><title>shopbridge</title><p>ok"))
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("shopbridge-service listening", "addr", cfg.HTTPAddr, "session_backend", cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shopbridge-service stopped")
}
