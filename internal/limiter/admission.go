// Package limiter bounds concurrent processing and trips a cooldown
// breaker when external tools fail repeatedly.
package limiter

import (
	"context"
	"errors"
	"time"
)

// ErrSaturated is returned when no processing slot frees up within the
// admission wait budget. Handlers map it to 503.
var ErrSaturated = errors.New("server is at capacity")

// Admission is a counting semaphore over processing slots. Requests wait
// a bounded time for a slot instead of queueing without limit.
type Admission struct {
	slots chan struct{}
	wait  time.Duration
}

// NewAdmission builds an admission controller with maxConcurrent slots.
func NewAdmission(maxConcurrent int, wait time.Duration) *Admission {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if wait < 0 {
		wait = 0
	}
	return &Admission{
		slots: make(chan struct{}, maxConcurrent),
		wait:  wait,
	}
}

// Acquire blocks until a slot is free, the wait budget runs out, or the
// request context is done. The caller must call Release after success.
func (a *Admission) Acquire(ctx context.Context) error {
	select {
	case a.slots <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(a.wait)
	defer timer.Stop()

	select {
	case a.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrSaturated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (a *Admission) Release() {
	select {
	case <-a.slots:
	default:
	}
}

// InUse returns the number of occupied slots.
func (a *Admission) InUse() int { return len(a.slots) }
