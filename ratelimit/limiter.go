// Package ratelimit implements the token-bucket request limiter with
// exponential lockout backoff described in spec §5: each identifier
// (session, peer, backup run) gets its own bucket plus a consecutive
// failure counter that escalates into a timed lockout.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/skylock-oss/skylock/config"
)

// Status classifies the outcome of a Check.
type Status int

const (
	// Allowed means the request may proceed.
	Allowed Status = iota
	// Limited means the bucket is empty; retry after WaitDuration.
	Limited
	// LockedOut means the identifier tripped the failure threshold
	// and is locked until Until.
	LockedOut
)

func (s Status) String() string {
	switch s {
	case Allowed:
		return "allowed"
	case Limited:
		return "limited"
	case LockedOut:
		return "locked_out"
	default:
		return "unknown"
	}
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Status       Status
	WaitDuration time.Duration
	Reason       string
	Until        time.Time
	Attempts     uint32
}

// IsAllowed reports whether the request may proceed.
func (r Result) IsAllowed() bool {
	return r.Status == Allowed
}

const (
	cleanupInterval = 5 * time.Minute
	maxIdleTime     = time.Hour
)

type identifierState struct {
	limiter      *rate.Limiter
	failureCount uint32
	lockedUntil  time.Time
	lockoutCount uint32
	lastActivity time.Time
}

func newIdentifierState(cfg config.RateLimitConfig) *identifierState {
	interval := cfg.Window / time.Duration(cfg.MaxRequests)
	return &identifierState{
		limiter:      rate.NewLimiter(rate.Every(interval), int(cfg.MaxRequests)),
		lastActivity: time.Now(),
	}
}

func (s *identifierState) isLocked(now time.Time) bool {
	return !s.lockedUntil.IsZero() && now.Before(s.lockedUntil)
}

// Limiter enforces a RateLimitConfig across a set of independently
// tracked identifiers.
type Limiter struct {
	mu          sync.RWMutex
	config      config.RateLimitConfig
	state       map[string]*identifierState
	lastCleanup time.Time
}

// New builds a Limiter from cfg.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		config:      cfg,
		state:       make(map[string]*identifierState),
		lastCleanup: time.Now(),
	}
}

// Default returns a Limiter using config.DefaultRateLimitConfig.
func Default() *Limiter {
	return New(config.DefaultRateLimitConfig())
}

// Authentication returns a Limiter tuned for passphrase/session-key
// attempts.
func Authentication() *Limiter {
	return New(config.StrictRateLimitConfig())
}

func (l *Limiter) getOrCreate(identifier string) *identifierState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.state[identifier]
	if !ok {
		s = newIdentifierState(l.config)
		l.state[identifier] = s
	}
	return s
}

// Check reports whether identifier may proceed, consuming a token on
// success.
func (l *Limiter) Check(identifier string) Result {
	l.maybeCleanup()

	s := l.getOrCreate(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	s.lastActivity = now

	if s.isLocked(now) {
		return Result{Status: LockedOut, Until: s.lockedUntil, Attempts: s.failureCount}
	}

	reservation := s.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Status: Limited, Reason: "request exceeds burst capacity"}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{
			Status:       Limited,
			WaitDuration: delay,
			Reason:       "rate limit exceeded",
		}
	}

	return Result{Status: Allowed}
}

// RecordSuccess resets identifier's consecutive failure count. The
// lockout count is left untouched so repeat offenders still face
// escalating backoff.
func (l *Limiter) RecordSuccess(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.state[identifier]; ok {
		s.failureCount = 0
	}
}

// RecordFailure records a failed attempt for identifier, locking it
// out once LockoutThreshold consecutive failures accumulate.
func (l *Limiter) RecordFailure(identifier string) Result {
	s := l.getOrCreate(identifier)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	s.failureCount++
	s.lastActivity = now

	if s.failureCount < l.config.LockoutThreshold {
		return Result{Status: Allowed}
	}

	duration := l.config.LockoutDuration
	if l.config.ExponentialBackoff && s.lockoutCount > 0 {
		multiplier := pow(l.config.BackoffMultiplier, s.lockoutCount)
		scaled := time.Duration(float64(l.config.LockoutDuration) * multiplier)
		if scaled > l.config.MaxLockoutDuration {
			scaled = l.config.MaxLockoutDuration
		}
		duration = scaled
	}

	s.lockedUntil = now.Add(duration)
	s.lockoutCount++
	s.failureCount = 0

	return Result{Status: LockedOut, Until: s.lockedUntil, Attempts: l.config.LockoutThreshold}
}

// CheckAndRecordFailure checks identifier and, if allowed, immediately
// records a failed attempt — the pattern an authentication endpoint
// uses for a rejected credential.
func (l *Limiter) CheckAndRecordFailure(identifier string) Result {
	result := l.Check(identifier)
	if !result.IsAllowed() {
		return result
	}
	return l.RecordFailure(identifier)
}

// Unlock clears any lockout and failure count for identifier.
func (l *Limiter) Unlock(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.state[identifier]; ok {
		s.lockedUntil = time.Time{}
		s.failureCount = 0
	}
}

// State reports identifier's current failure count, lock status, and
// lockout count, for monitoring.
func (l *Limiter) State(identifier string) (failureCount uint32, locked bool, lockoutCount uint32, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, exists := l.state[identifier]
	if !exists {
		return 0, false, 0, false
	}
	return s.failureCount, s.isLocked(time.Now()), s.lockoutCount, true
}

// Clear removes all tracked identifier state.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = make(map[string]*identifierState)
}

func (l *Limiter) maybeCleanup() {
	l.mu.Lock()
	if time.Since(l.lastCleanup) < cleanupInterval {
		l.mu.Unlock()
		return
	}
	l.lastCleanup = time.Now()
	l.mu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for id, s := range l.state {
		if now.Sub(s.lastActivity) >= maxIdleTime && !s.isLocked(now) {
			delete(l.state, id)
		}
	}
}

func pow(base float64, exp uint32) float64 {
	result := 1.0
	for i := uint32(0); i < exp; i++ {
		result *= base
	}
	return result
}
