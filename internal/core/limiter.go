package core

// limiter.go bounds how many documents are converted at once.
//
// The batch runner takes one slot per document worker and the HTTP service
// takes one slot per conversion request, so both share the same ceiling when
// they run in one process. A request that cannot get a slot within the wait
// time fails with ErrTooManyDocuments.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyDocuments is returned when no conversion slot frees up in time.
var ErrTooManyDocuments = errors.New("too many documents in progress, please try again later")

// DefaultMaxConcurrentDocuments is used when the configured limit is not positive.
const DefaultMaxConcurrentDocuments = 4

// DefaultSlotWait is used when the configured wait is not positive.
const DefaultSlotWait = 30 * time.Second

// drainPoll is how often WaitForDrain re-checks the active count.
const drainPoll = 50 * time.Millisecond

// DocumentLimiter is a counting semaphore for document conversions.
type DocumentLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int32
}

// NewDocumentLimiter allows at most maxConcurrent conversions; callers wait up
// to maxWait for a slot.
func NewDocumentLimiter(maxConcurrent int, maxWait time.Duration) *DocumentLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentDocuments
	}
	if maxWait <= 0 {
		maxWait = DefaultSlotWait
	}
	return &DocumentLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire blocks until a slot is free, the wait time passes, or ctx ends.
// Every successful Acquire must be paired with Release.
func (l *DocumentLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyDocuments
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *DocumentLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *DocumentLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of conversions holding a slot.
func (l *DocumentLimiter) Active() int {
	return int(l.active.Load())
}

// Capacity returns the configured maximum.
func (l *DocumentLimiter) Capacity() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *DocumentLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no conversion holds a slot or ctx ends.
// Used on shutdown so in-flight documents finish writing.
func (l *DocumentLimiter) WaitForDrain(ctx context.Context) error {
	if l.Active() == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.Active() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a snapshot of the limiter for health output.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Capacity  int `json:"capacity"`
}

// Status returns the current limiter state.
func (l *DocumentLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:    l.Active(),
		Available: l.Available(),
		Capacity:  l.Capacity(),
	}
}
