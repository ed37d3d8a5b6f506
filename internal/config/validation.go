package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var storeTypes = map[string]bool{
	"":       true,
	"memory": true,
	"sqlite": true,
	"redis":  true,
}

func Validate(cfg *Config) ([]string, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	warnings := []string{}
	if err := validateCache(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateStore(cfg, &warnings); err != nil {
		return warnings, err
	}
	if err := validateAdmin(cfg); err != nil {
		return warnings, err
	}
	if err := validateLimits(cfg); err != nil {
		return warnings, err
	}
	if strings.TrimSpace(cfg.Boards.ListenAddr) != "" && strings.TrimSpace(cfg.Boards.FixturePath) == "" {
		warnings = append(warnings, "boards.fixture_path empty, listing an empty catalog")
	}
	return warnings, nil
}

func validateCache(cfg *Config, warnings *[]string) error {
	if cfg.Cache.MaxSize < 0 {
		return errors.New("cache.max_size must be >= 0")
	}
	if cfg.Cache.MaxAgeMS < 0 {
		return errors.New("cache.max_age_ms must be >= 0")
	}
	if time.Duration(cfg.Cache.MaxAgeMS)*time.Millisecond > time.Hour {
		*warnings = append(*warnings, "cache.max_age_ms exceeds 1h")
	}
	if strings.Contains(cfg.Cache.Namespace, "&") {
		return fmt.Errorf("cache.namespace %q must not contain '&'", cfg.Cache.Namespace)
	}
	return nil
}

func validateStore(cfg *Config, warnings *[]string) error {
	storeType := strings.ToLower(strings.TrimSpace(cfg.Store.Type))
	if !storeTypes[storeType] {
		*warnings = append(*warnings, fmt.Sprintf("store.type %q unknown, using memory", cfg.Store.Type))
		return nil
	}
	if storeType == "sqlite" && strings.TrimSpace(cfg.Store.Path) == "" {
		return errors.New("store.path is required for sqlite")
	}
	if cfg.Store.MaxBytes < 0 {
		return errors.New("store.max_bytes must be >= 0")
	}
	if cfg.Store.TimeoutMS < 0 {
		return errors.New("store.timeout_ms must be >= 0")
	}
	if storeType == "redis" && cfg.Store.MaxBytes > 0 {
		*warnings = append(*warnings, "store.max_bytes is ignored for redis; quota comes from maxmemory")
	}
	return nil
}

func validateAdmin(cfg *Config) error {
	if strings.TrimSpace(cfg.Admin.ListenAddr) == "" {
		return nil
	}
	if strings.TrimSpace(cfg.Admin.Token) == "" {
		return errors.New("admin token is required when admin.listen_addr is set")
	}
	if cfg.Admin.RateRPS < 0 || cfg.Admin.RateBurst < 0 || cfg.Admin.MutateRPS < 0 || cfg.Admin.MutateBurst < 0 {
		return errors.New("admin rate limits must be >= 0")
	}
	return nil
}

func validateLimits(cfg *Config) error {
	if cfg.Limits.MaxHeaderBytes < 0 {
		return errors.New("limits.max_header_bytes must be >= 0")
	}
	if cfg.Limits.MaxBodyBytes < 0 {
		return errors.New("limits.max_body_bytes must be >= 0")
	}
	if cfg.Limits.ReadHeaderTimeoutMS < 0 {
		return errors.New("limits.read_header_timeout_ms must be >= 0")
	}
	if cfg.Limits.ReadTimeoutMS < 0 || cfg.Limits.WriteTimeoutMS < 0 || cfg.Limits.IdleTimeoutMS < 0 {
		return errors.New("limits timeouts must be >= 0")
	}
	if cfg.Limits.ShutdownTimeoutMS < 0 {
		return errors.New("limits.shutdown_timeout_ms must be >= 0")
	}
	return nil
}
