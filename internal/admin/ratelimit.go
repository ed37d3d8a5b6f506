package admin

import (
	"net"
	"sync"
	"time"
)

// Class separates admin calls that only read the cache from calls that drop
// entries. Each class draws from its own per-client budget.
type Class int

const (
	ClassRead Class = iota
	ClassMutate
)

const (
	defaultReadRPS       = 5
	defaultReadBurst     = 10
	defaultMutateRPS     = 1
	defaultMutateBurst   = 3
	defaultMaxFailures   = 10
	defaultBlockDuration = 10 * time.Minute
	defaultIdleTTL       = 10 * time.Minute
	sweepThreshold       = 1024
)

type RateLimitConfig struct {
	ReadRPS       int
	ReadBurst     int
	MutateRPS     int
	MutateBurst   int
	MaxFailures   int
	BlockDuration time.Duration
	// IdleTTL is how long a quiet, unblocked client is remembered.
	IdleTTL time.Duration
	Now     func() time.Time
}

// RateLimiter budgets admin calls per client IP and blocks clients that keep
// presenting bad bearer tokens.
type RateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*clientState
	read        budget
	mutate      budget
	maxFailures int
	blockFor    time.Duration
	idleTTL     time.Duration
	now         func() time.Time
}

type budget struct {
	rate  float64
	burst float64
}

type bucket struct {
	tokens float64
	at     time.Time
}

type clientState struct {
	read         bucket
	mutate       bucket
	failures     int
	blockedUntil time.Time
	lastSeen     time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	l := &RateLimiter{
		clients:     make(map[string]*clientState),
		read:        budget{rate: positive(cfg.ReadRPS, defaultReadRPS), burst: positive(cfg.ReadBurst, defaultReadBurst)},
		mutate:      budget{rate: positive(cfg.MutateRPS, defaultMutateRPS), burst: positive(cfg.MutateBurst, defaultMutateBurst)},
		maxFailures: cfg.MaxFailures,
		blockFor:    cfg.BlockDuration,
		idleTTL:     cfg.IdleTTL,
		now:         cfg.Now,
	}
	if l.maxFailures <= 0 {
		l.maxFailures = defaultMaxFailures
	}
	if l.blockFor <= 0 {
		l.blockFor = defaultBlockDuration
	}
	if l.idleTTL <= 0 {
		l.idleTTL = defaultIdleTTL
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Allow spends one token of class from the client's budget. Blocked clients
// are refused without spending.
func (l *RateLimiter) Allow(addr string, class Class) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clientLocked(remoteIP(addr), now)
	if now.Before(state.blockedUntil) {
		return false
	}
	if class == ClassMutate {
		return state.mutate.take(l.mutate, now)
	}
	return state.read.take(l.read, now)
}

// Observe feeds the bearer auth outcome for a request from addr. A success
// forgets earlier failures; maxFailures in a row block the client.
func (l *RateLimiter) Observe(addr string, authErr error) {
	if l == nil {
		return
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.clientLocked(remoteIP(addr), now)
	if authErr == nil {
		state.failures = 0
		return
	}
	if now.Before(state.blockedUntil) {
		return
	}
	state.failures++
	if state.failures >= l.maxFailures {
		state.blockedUntil = now.Add(l.blockFor)
		state.failures = 0
	}
}

func (l *RateLimiter) clientLocked(ip string, now time.Time) *clientState {
	if len(l.clients) >= sweepThreshold {
		l.sweepLocked(now)
	}
	state := l.clients[ip]
	if state == nil {
		state = &clientState{
			read:   bucket{tokens: l.read.burst, at: now},
			mutate: bucket{tokens: l.mutate.burst, at: now},
		}
		l.clients[ip] = state
	}
	state.lastSeen = now
	return state
}

// sweepLocked forgets clients that are neither blocked nor recently active.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for ip, state := range l.clients {
		if now.Before(state.blockedUntil) {
			continue
		}
		if now.Sub(state.lastSeen) > l.idleTTL {
			delete(l.clients, ip)
		}
	}
}

func (b *bucket) take(limit budget, now time.Time) bool {
	if elapsed := now.Sub(b.at).Seconds(); elapsed > 0 {
		b.tokens += elapsed * limit.rate
		if b.tokens > limit.burst {
			b.tokens = limit.burst
		}
	}
	b.at = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func positive(value int, fallback int) float64 {
	if value <= 0 {
		return float64(fallback)
	}
	return float64(value)
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
