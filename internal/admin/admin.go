package admin

import (
	"log"
	"net/http"

	"board_query_cache/internal/querycache"
)

const (
	RequestIDHeader     = "X-Request-Id"
	defaultMaxBodyBytes = 64 * 1024
)

// CacheControl is the part of the query cache exposed to operators.
type CacheControl interface {
	Stats() querycache.Stats
	Invalidate(pattern string) int
	Clear() int
}

type HandlerConfig struct {
	Cache        CacheControl
	Auth         *Authenticator
	RateLimiter  *RateLimiter
	MaxBodyBytes int64
	Logger       *log.Logger
}

func NewHandler(cfg HandlerConfig) http.Handler {
	h := &handler{
		cache:        cfg.Cache,
		auth:         cfg.Auth,
		rateLimiter:  cfg.RateLimiter,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}
	if h.maxBodyBytes <= 0 {
		h.maxBodyBytes = defaultMaxBodyBytes
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/cache/stats", h.handleStats)
	mux.HandleFunc("/admin/cache/invalidate", h.handleInvalidate)
	mux.HandleFunc("/admin/cache/clear", h.handleClear)
	h.mux = mux
	return h
}
