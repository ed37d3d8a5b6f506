package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"board_query_cache/internal/admin"
	"board_query_cache/internal/boards"
	"board_query_cache/internal/config"
	"board_query_cache/internal/durable"
	"board_query_cache/internal/limits"
	"board_query_cache/internal/obs"
	"board_query_cache/internal/querycache"
	"board_query_cache/internal/server"
)

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	warnings, err := config.Validate(cfg)
	for _, warning := range warnings {
		log.Printf("config_warning %s", warning)
	}
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	lim, err := limits.FromConfig(cfg.Limits)
	if err != nil {
		log.Fatalf("limits: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics()
	events := obs.NewEventLog(os.Stdout)

	store, storeCloser := durable.Open(cfg.Store)
	cache := querycache.New(querycache.Config{
		Namespace: cfg.Cache.Namespace,
		MaxSize:   cfg.Cache.MaxSize,
		MaxAge:    time.Duration(cfg.Cache.MaxAgeMS) * time.Millisecond,
	}, store, querycache.Options{
		Metrics: metrics,
		Events:  events,
	})
	report := cache.Load()
	log.Printf("cache_load restored=%d expired=%d missing=%d trimmed=%d reset=%t",
		report.Restored, report.Expired, report.Missing, report.Trimmed, report.Reset)

	catalog, err := boards.LoadCatalog(cfg.Boards.FixturePath)
	if err != nil {
		log.Fatalf("boards catalog: %v", err)
	}
	service := boards.NewService(cache, catalog, nil)
	catalog.SetNotifier(service)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", boards.NewHandler(service, catalog))

	var adminServer *server.Server
	if cfg.Admin.ListenAddr != "" {
		auth, err := admin.NewAuthenticator(admin.AuthConfig{Token: cfg.Admin.Token})
		if err != nil {
			log.Fatalf("admin auth: %v", err)
		}
		adminHandler := admin.NewHandler(admin.HandlerConfig{
			Cache: cache,
			Auth:  auth,
			RateLimiter: admin.NewRateLimiter(admin.RateLimitConfig{
				ReadRPS:     cfg.Admin.RateRPS,
				ReadBurst:   cfg.Admin.RateBurst,
				MutateRPS:   cfg.Admin.MutateRPS,
				MutateBurst: cfg.Admin.MutateBurst,
			}),
			MaxBodyBytes: lim.MaxBodyBytes,
		})
		adminServer, err = server.Start(adminHandler, cfg.Admin.ListenAddr, server.Options{Limits: lim})
		if err != nil {
			log.Fatalf("start admin server: %v", err)
		}
		log.Printf("admin listening on http://%s", adminServer.Addr)
	}

	listenAddr := cfg.Boards.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8080"
	}
	mainServer, err := server.Start(mux, listenAddr, server.Options{
		Limits: lim,
		Stoppers: []server.Stopper{server.StopFunc(func(context.Context) error {
			return adminServer.Shutdown()
		})},
	})
	if err != nil {
		log.Fatalf("start server: %v", err)
	}
	log.Printf("listening on http://%s", mainServer.Addr)

	<-ctx.Done()
	log.Printf("shutdown signal received")
	// Stops the admin listener first; the store closes once listings drain.
	if err := mainServer.Shutdown(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := storeCloser.Close(); err != nil {
		log.Printf("close store: %v", err)
	}
}
