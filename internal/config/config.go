package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Cache  CacheConfig  `json:"cache"`
	Store  StoreConfig  `json:"store"`
	Admin  AdminConfig  `json:"admin"`
	Limits LimitsConfig `json:"limits"`
	Boards BoardsConfig `json:"boards"`
}

type CacheConfig struct {
	Namespace string `json:"namespace" env:"BOARDCACHE_NAMESPACE"`
	MaxSize   int    `json:"max_size" env:"BOARDCACHE_MAX_SIZE"`
	MaxAgeMS  int    `json:"max_age_ms" env:"BOARDCACHE_MAX_AGE_MS"`
}

type StoreConfig struct {
	Type      string `json:"type" env:"BOARDCACHE_STORE_TYPE"`
	Path      string `json:"path" env:"BOARDCACHE_STORE_PATH"`
	MaxBytes  int64  `json:"max_bytes" env:"BOARDCACHE_STORE_MAX_BYTES"`
	RedisURL  string `json:"redis_url" env:"BOARDCACHE_REDIS_URL"`
	KeyPrefix string `json:"key_prefix" env:"BOARDCACHE_STORE_KEY_PREFIX"`
	TimeoutMS int    `json:"timeout_ms" env:"BOARDCACHE_STORE_TIMEOUT_MS"`
}

type AdminConfig struct {
	ListenAddr  string `json:"listen_addr" env:"BOARDCACHE_ADMIN_LISTEN_ADDR"`
	Token       string `json:"-" env:"BOARDCACHE_ADMIN_TOKEN"`
	RateRPS     int    `json:"rate_rps" env:"BOARDCACHE_ADMIN_RATE_RPS"`
	RateBurst   int    `json:"rate_burst" env:"BOARDCACHE_ADMIN_RATE_BURST"`
	MutateRPS   int    `json:"mutate_rps" env:"BOARDCACHE_ADMIN_MUTATE_RPS"`
	MutateBurst int    `json:"mutate_burst" env:"BOARDCACHE_ADMIN_MUTATE_BURST"`
}

// BoardsConfig drives the demo listing listener. FixturePath is a JSON array
// of boards served by the in-process catalog.
type BoardsConfig struct {
	ListenAddr  string `json:"listen_addr" env:"BOARDCACHE_LISTEN_ADDR"`
	FixturePath string `json:"fixture_path" env:"BOARDCACHE_FIXTURE_PATH"`
}

type LimitsConfig struct {
	MaxHeaderBytes      int `json:"max_header_bytes"`
	MaxBodyBytes        int `json:"max_body_bytes"`
	ReadHeaderTimeoutMS int `json:"read_header_timeout_ms"`
	ReadTimeoutMS       int `json:"read_timeout_ms"`
	WriteTimeoutMS      int `json:"write_timeout_ms"`
	IdleTimeoutMS       int `json:"idle_timeout_ms"`
	ShutdownTimeoutMS   int `json:"shutdown_timeout_ms"`
}

func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays BOARDCACHE_* environment variables onto cfg. Unset
// variables leave the file values untouched.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the optional JSON file at path, then applies the environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg, err = ParseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
