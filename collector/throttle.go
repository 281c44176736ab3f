package collector

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle serializes calls and keeps at least interval between the end of
// one call and the start of the next. One Throttle is shared by every thread
// fetch so the remote api sees a single polite client.
type Throttle struct {
	interval time.Duration
	// Holds one token while a call runs.
	sem     chan struct{}
	limiter *rate.Limiter
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{
		interval: interval,
		sem:      make(chan struct{}, 1),
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
}

// Do runs fn once its turn comes. Waiting, for the previous call or for the
// gap, stops early with ctx's error. fn's error is returned as is and still
// counts as a completed call.
func (t *Throttle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.sem }()

	if err := t.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	err := fn(ctx)

	// Re-arm from the completion time: the fresh limiter's only token is
	// spent now, the next one arrives interval later.
	t.limiter = rate.NewLimiter(rate.Every(t.interval), 1)
	t.limiter.AllowN(time.Now(), 1)
	return err
}
