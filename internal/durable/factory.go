package durable

import (
	"io"
	"log"
	"strings"
	"time"

	"board_query_cache/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named by cfg.Type. Unknown types and backends that
// fail to open degrade to an in-memory store so the cache still works for the
// session.
func Open(cfg config.StoreConfig) (Store, io.Closer) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "sqlite":
		store, err := OpenSQLite(cfg.Path, cfg.MaxBytes, timeout)
		if err != nil {
			log.Printf("durable_open type=sqlite result=fallback reason=%v", err)
			break
		}
		return store, store
	case "redis":
		store, err := OpenRedis(cfg.RedisURL, cfg.KeyPrefix, timeout)
		if err != nil {
			log.Printf("durable_open type=redis result=fallback reason=%v", err)
			break
		}
		return store, store
	}
	return NewMemoryStore(cfg.MaxBytes), nopCloser{}
}
