package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/mmhmddd/omega-gateway/internal/auth"
	"github.com/mmhmddd/omega-gateway/internal/config"
	"github.com/mmhmddd/omega-gateway/internal/httpapi"
	"github.com/mmhmddd/omega-gateway/internal/metrics"
	"github.com/mmhmddd/omega-gateway/internal/notify"
	"github.com/mmhmddd/omega-gateway/internal/session"
	"github.com/mmhmddd/omega-gateway/internal/transport"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CookieSecret == "" {
		secret, err := auth.NewCookieSecret()
		if err != nil {
			log.Fatalf("cookie secret generation failed: %v", err)
		}
		cfg.CookieSecret = secret
	}

	var backend session.Backend
	switch cfg.SessionBackend {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		backend = session.NewRedisBackend(redisClient)
	default:
		backend = session.NewFileBackend(cfg.StateFile)
	}

	store, err := session.NewStore(backend)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	rt := &transport.BearerRoundTripper{Store: store, Metrics: collector}
	outbound := &http.Client{Transport: rt, Timeout: cfg.RequestTimeout}

	authn := auth.NewClient(cfg.BackendURL, outbound, store)
	poller := notify.NewPoller(store, outbound, cfg.BackendURL, cfg.PollInterval, collector)
	poller.Start(ctx)
	defer poller.Close()

	server, err := httpapi.NewServer(cfg, store, authn, poller, rt, collector, registry)
	if err != nil {
		log.Fatalf("server init failed: %v", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("gateway http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
