package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Default limits
const (
	DefaultRequestsPerMinute = 50
	DefaultMaxRetries        = 5
	DefaultWindow            = time.Minute
)

// DefaultBackoff is the wait schedule between rate-limited attempts
var DefaultBackoff = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	32 * time.Second,
}

// ErrInvalidConfig is returned for non-positive limits or an empty backoff schedule
var ErrInvalidConfig = errors.New("invalid rate limit configuration")

// Config configures admission and retry behaviour
type Config struct {
	RequestsPerMinute int             // Maximum admissions in any trailing window
	MaxRetries        int             // Maximum attempts per call
	Backoff           []time.Duration // Wait before retry n is Backoff[min(n, len-1)]
	Window            time.Duration   // Sliding window length (default: 1 minute)
}

// DefaultConfig returns the limits used against hosted completion APIs
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: DefaultRequestsPerMinute,
		MaxRetries:        DefaultMaxRetries,
		Backoff:           append([]time.Duration(nil), DefaultBackoff...),
		Window:            DefaultWindow,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("requests per minute must be positive"))
	}
	if c.MaxRetries <= 0 {
		return errors.Join(ErrInvalidConfig, errors.New("max retries must be positive"))
	}
	if len(c.Backoff) == 0 {
		return errors.Join(ErrInvalidConfig, errors.New("backoff schedule cannot be empty"))
	}
	for _, d := range c.Backoff {
		if d <= 0 {
			return errors.Join(ErrInvalidConfig, errors.New("backoff durations must be positive"))
		}
	}
	return nil
}

// Stats is a diagnostic snapshot of limiter activity
type Stats struct {
	InWindow  int   // Admissions inside the current window
	Limit     int   // Configured requests per window
	Admitted  int64 // Total admissions
	Throttled int64 // Admissions that had to wait for the window
	Retried   int64 // Attempts retried after a rate-limit rejection
}

// Limiter enforces a sliding-window request budget shared by every caller
// of the instance. The timestamp queue is guarded by a single mutex so the
// admission check and the append happen in one critical section.
type Limiter struct {
	cfg   Config
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   zerolog.Logger

	mu         sync.Mutex
	timestamps []time.Time // ascending, len <= cfg.RequestsPerMinute
	admitted   int64
	throttled  int64
	retried    int64
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the context-aware sleep used for window waits and backoff
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// New creates a limiter. Zero values in cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) (*Limiter, error) {
	def := DefaultConfig()
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff == nil {
		cfg.Backoff = def.Backoff
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        zerolog.Nop(),
		timestamps: make([]time.Time, 0, cfg.RequestsPerMinute),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Config returns the effective configuration
func (l *Limiter) Config() Config {
	return l.cfg
}

// Wait blocks until a request may be issued without exceeding the budget,
// then records the admission. Callers are admitted in the order they win
// the mutex; a caller that has to wait re-checks after the oldest
// timestamp leaves the window.
func (l *Limiter) Wait(ctx context.Context) error {
	throttled := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		now := l.now()
		l.pruneLocked(now)
		if len(l.timestamps) < l.cfg.RequestsPerMinute {
			l.timestamps = append(l.timestamps, now)
			l.admitted++
			if throttled {
				l.throttled++
			}
			l.mu.Unlock()
			return nil
		}
		wait := l.timestamps[0].Add(l.cfg.Window).Sub(now)
		l.mu.Unlock()

		throttled = true
		if wait <= 0 {
			continue
		}
		l.log.Info().Dur("wait", wait).Msg("rate limit reached, waiting")
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// pruneLocked drops timestamps that are at least one window old
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	drop := 0
	for drop < len(l.timestamps) && !l.timestamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[drop:]...)
	}
}

// BackoffFor returns the wait before retrying after the given zero-based
// attempt. Durations are capped at the last configured value.
func (l *Limiter) BackoffFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(l.cfg.Backoff) {
		attempt = len(l.cfg.Backoff) - 1
	}
	return l.cfg.Backoff[attempt]
}

// Stats returns a snapshot of limiter activity
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return Stats{
		InWindow:  len(l.timestamps),
		Limit:     l.cfg.RequestsPerMinute,
		Admitted:  l.admitted,
		Throttled: l.throttled,
		Retried:   l.retried,
	}
}

func (l *Limiter) recordRetry() {
	l.mu.Lock()
	l.retried++
	l.mu.Unlock()
}

// sleepCtx sleeps for d or until ctx is cancelled
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
