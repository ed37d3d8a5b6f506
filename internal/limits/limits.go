package limits

import (
	"fmt"
	"time"

	"board_query_cache/internal/config"
)

const (
	defaultMaxHeaderBytes    = 16 * 1024
	defaultMaxBodyBytes      = 64 * 1024
	defaultReadHeaderTimeout = 2 * time.Second
	defaultReadTimeout       = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultIdleTimeout       = 30 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// Limits bounds the admin listener. The admin surface only carries small
// JSON bodies, so the defaults are tight.
type Limits struct {
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func Default() Limits {
	return Limits{
		MaxHeaderBytes:    defaultMaxHeaderBytes,
		MaxBodyBytes:      defaultMaxBodyBytes,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
		ShutdownTimeout:   defaultShutdownTimeout,
	}
}

func FromConfig(cfg config.LimitsConfig) (Limits, error) {
	limits := Default()
	if cfg.MaxHeaderBytes > 0 {
		limits.MaxHeaderBytes = cfg.MaxHeaderBytes
	} else if cfg.MaxHeaderBytes < 0 {
		return Limits{}, fmt.Errorf("max_header_bytes must be positive")
	}
	if cfg.MaxBodyBytes > 0 {
		limits.MaxBodyBytes = int64(cfg.MaxBodyBytes)
	} else if cfg.MaxBodyBytes < 0 {
		return Limits{}, fmt.Errorf("max_body_bytes must be positive")
	}

	var err error
	if limits.ReadHeaderTimeout, err = durationOr(cfg.ReadHeaderTimeoutMS, limits.ReadHeaderTimeout, "read_header_timeout_ms"); err != nil {
		return Limits{}, err
	}
	if limits.ReadTimeout, err = durationOr(cfg.ReadTimeoutMS, limits.ReadTimeout, "read_timeout_ms"); err != nil {
		return Limits{}, err
	}
	if limits.WriteTimeout, err = durationOr(cfg.WriteTimeoutMS, limits.WriteTimeout, "write_timeout_ms"); err != nil {
		return Limits{}, err
	}
	if limits.IdleTimeout, err = durationOr(cfg.IdleTimeoutMS, limits.IdleTimeout, "idle_timeout_ms"); err != nil {
		return Limits{}, err
	}
	if limits.ShutdownTimeout, err = durationOr(cfg.ShutdownTimeoutMS, limits.ShutdownTimeout, "shutdown_timeout_ms"); err != nil {
		return Limits{}, err
	}
	return limits, nil
}

func durationOr(ms int, fallback time.Duration, field string) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	if ms == 0 {
		return fallback, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}
