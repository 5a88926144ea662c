package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter paces consecutive page visits of one session.
type Limiter interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

type JitterLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	rng        *rand.Rand
	mu         sync.Mutex
}

func NewJitterLimiter(minDelay, maxDelay time.Duration) *JitterLimiter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *JitterLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastAction.IsZero() {
		elapsed := time.Since(r.lastAction)
		delay := r.delay()

		if elapsed < delay {
			timer := time.NewTimer(delay - elapsed)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *JitterLimiter) RecordSuccess() {}

func (r *JitterLimiter) RecordError() {}

// Bounds returns the current delay window.
func (r *JitterLimiter) Bounds() (time.Duration, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.minDelay, r.maxDelay
}

func (r *JitterLimiter) delay() time.Duration {
	if r.minDelay == r.maxDelay {
		return r.minDelay
	}
	return r.minDelay + time.Duration(r.rng.Int63n(int64(r.maxDelay-r.minDelay)))
}

// AdaptiveLimiter widens the delay window after repeated failures (blocks,
// empty pages) and narrows it again after a streak of successes.
type AdaptiveLimiter struct {
	*JitterLimiter
	floor         time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
	maxMin        time.Duration
	maxMax        time.Duration
}

func NewAdaptiveLimiter(minDelay, maxDelay time.Duration) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		JitterLimiter: NewJitterLimiter(minDelay, maxDelay),
		floor:         minDelay,
		maxErrorCount: 3,
		backoffFactor: 1.5,
		maxMin:        60 * time.Second,
		maxMax:        120 * time.Second,
	}
}

func (a *AdaptiveLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		if newMin < a.floor {
			newMin = a.floor
		}
		a.minDelay = newMin
		if a.maxDelay < a.minDelay {
			a.maxDelay = a.minDelay
		}
		a.successCount = 0
	}
}

func (a *AdaptiveLimiter) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > a.maxMin {
			newMin = a.maxMin
		}
		if newMax > a.maxMax {
			newMax = a.maxMax
		}
		if newMax < newMin {
			newMax = newMin
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}
