package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docextract/pkg/types"
)

// fakeClock is a manually advanced clock whose sleeps advance time and are recorded
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newTestLimiter(t *testing.T, cfg Config, clock *fakeClock) *Limiter {
	t.Helper()
	l, err := New(cfg, WithClock(clock.Now), WithSleep(clock.Sleep))
	require.NoError(t, err)
	return l
}

func TestNew_Defaults(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)

	cfg := l.Config()
	assert.Equal(t, DefaultRequestsPerMinute, cfg.RequestsPerMinute)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultBackoff, cfg.Backoff)
	assert.Equal(t, time.Minute, cfg.Window)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"negative rpm", Config{RequestsPerMinute: -1, MaxRetries: 1, Backoff: DefaultBackoff}},
		{"negative retries", Config{RequestsPerMinute: 1, MaxRetries: -2, Backoff: DefaultBackoff}},
		{"empty backoff", Config{RequestsPerMinute: 1, MaxRetries: 1, Backoff: []time.Duration{}}},
		{"zero backoff entry", Config{RequestsPerMinute: 1, MaxRetries: 1, Backoff: []time.Duration{time.Second, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestWait_BlocksUntilOldestAgesOut(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{RequestsPerMinute: 2, MaxRetries: 1, Backoff: DefaultBackoff}, clock)
	ctx := context.Background()
	start := clock.Now()

	require.NoError(t, l.Wait(ctx))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, l.Wait(ctx))
	clock.Advance(300 * time.Millisecond)
	assert.Empty(t, clock.Sleeps(), "first two calls are admitted immediately")

	require.NoError(t, l.Wait(ctx))

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 60*time.Second-600*time.Millisecond, sleeps[0])
	assert.Equal(t, 60*time.Second, clock.Now().Sub(start), "third call admitted once the first leaves the window")

	stats := l.Stats()
	assert.Equal(t, int64(3), stats.Admitted)
	assert.Equal(t, int64(1), stats.Throttled)
	assert.Equal(t, 2, stats.InWindow)
}

func TestWait_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{RequestsPerMinute: 3, MaxRetries: 1, Backoff: DefaultBackoff}, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	clock.Advance(61 * time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 3, l.Stats().InWindow)
}

func TestWait_ConcurrentCallersNeverExceedBudget(t *testing.T) {
	clock := newFakeClock()
	blocked := errors.New("would block")
	var sleeps atomic.Int32
	l, err := New(Config{RequestsPerMinute: 10, MaxRetries: 1, Backoff: DefaultBackoff},
		WithClock(clock.Now),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps.Add(1)
			return blocked
		}))
	require.NoError(t, err)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Wait(context.Background()); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), admitted.Load())
	assert.Equal(t, int32(40), sleeps.Load())
	assert.Equal(t, 10, l.Stats().InWindow)
}

func TestWait_ContextCancelled(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{RequestsPerMinute: 1, MaxRetries: 1, Backoff: DefaultBackoff}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Wait(ctx))
	cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWait_RealSleepHonoursCancel(t *testing.T) {
	l, err := New(Config{RequestsPerMinute: 1, MaxRetries: 1, Backoff: DefaultBackoff})
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestBackoffFor(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, 2 * time.Second},
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{4, 32 * time.Second},
		{5, 32 * time.Second},
		{100, 32 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.BackoffFor(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExecute_RetriesRateLimited(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, DefaultConfig(), clock)

	calls := 0
	result, err := Execute(context.Background(), l, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", types.ErrRateLimited
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Sleeps())
	assert.Equal(t, int64(2), l.Stats().Retried)
}

func TestExecute_NonRetryablePropagates(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, DefaultConfig(), clock)

	boom := errors.New("schema mismatch")
	calls := 0
	_, err := Execute(context.Background(), l, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestExecute_Exhausted(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	l := newTestLimiter(t, cfg, clock)

	calls := 0
	_, err := Execute(context.Background(), l, func(ctx context.Context) (int, error) {
		calls++
		return 0, types.ErrRateLimited
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRetryExhausted)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.Sleeps())
}

func TestExecute_BackoffCappedAtLastEntry(t *testing.T) {
	clock := newFakeClock()
	cfg := Config{
		RequestsPerMinute: 100,
		MaxRetries:        5,
		Backoff:           []time.Duration{time.Second, 3 * time.Second},
	}
	l := newTestLimiter(t, cfg, clock)

	_, err := Execute(context.Background(), l, func(ctx context.Context) (int, error) {
		return 0, types.ErrRateLimited
	})

	assert.ErrorIs(t, err, types.ErrRetryExhausted)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}, clock.Sleeps())
}

func TestExecute_FailedAttemptsConsumeSlots(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, Config{RequestsPerMinute: 10, MaxRetries: 3, Backoff: []time.Duration{time.Millisecond}}, clock)

	_, _ = Execute(context.Background(), l, func(ctx context.Context) (int, error) {
		return 0, types.ErrRateLimited
	})

	assert.Equal(t, 3, l.Stats().InWindow)
}

func TestDo(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(t, DefaultConfig(), clock)

	calls := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return types.ErrRateLimited
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
