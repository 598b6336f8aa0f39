// Package ratelimit gates calls to a rate-limited upstream service.
//
// A Limiter enforces a sliding-window budget: no more than RequestsPerMinute
// admissions in any trailing window. One Limiter is shared by every worker
// talking to the same endpoint; its timestamp queue is the single
// serialization point for the budget.
//
// # Basic Usage
//
//	lim, err := ratelimit.New(ratelimit.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	doc, err := ratelimit.Execute(ctx, lim, func(ctx context.Context) (*types.Legislation, error) {
//	    return client.Extract(ctx, instructions, chunk.Text)
//	})
//
// # Retry
//
// Execute retries only errors matching types.ErrRateLimited, sleeping
// Backoff[min(attempt, len(Backoff)-1)] between attempts (2, 4, 8, 16, 32s
// by default). Other errors propagate immediately. When every attempt is
// rejected the returned error wraps types.ErrRetryExhausted.
//
// # Testing
//
// WithClock and WithSleep replace time.Now and the sleep function so
// admission and backoff can be exercised without real waiting.
package ratelimit
