package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned once the per-run request budget is spent.
var ErrBudgetExhausted = errors.New("model request budget exhausted")

// Limiter paces model requests and caps how many a single run may make.
type Limiter struct {
	limiter *rate.Limiter

	mu      sync.Mutex
	used    int
	max     int
	refused int
}

// New returns a Limiter. perSecond <= 0 disables pacing; max <= 0 disables
// the budget.
func New(perSecond float64, burst, max int) *Limiter {
	l := &Limiter{max: max}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return l
}

// Acquire takes one request from the budget and waits for a pacing slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.max > 0 && l.used >= l.max {
		l.refused++
		l.mu.Unlock()
		return fmt.Errorf("%w (%d/%d)", ErrBudgetExhausted, l.used, l.max)
	}
	l.used++
	l.mu.Unlock()

	if l.limiter == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}
	return nil
}

// Stats reports used requests, the budget and refused requests.
func (l *Limiter) Stats() (used, max, refused int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used, l.max, l.refused
}
