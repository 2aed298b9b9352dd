package storage

import (
	"sync"
	"time"
)

// Breaker states
const (
	BreakerClosed   = "closed"
	BreakerOpen     = "open"
	BreakerHalfOpen = "half-open"
)

// Breaker tracks consecutive primary failures. Once threshold failures pile up it
// opens and Allow returns false until cooldown has passed; then a single trial call is
// let through and its outcome closes or re-opens the breaker.
//
// A threshold of zero or less disables the breaker: every call tries the primary.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	state     string
	openedAt  time.Time
	probing   bool
	now       func() time.Time
	onChange  func(open bool)
}

// NewBreaker returns a closed breaker
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// OnChange registers a callback fired when the breaker opens or closes
func (b *Breaker) OnChange(fn func(open bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// State returns the current state name
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether the next call may go to the primary
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probing = true
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// Success records a call the primary answered
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasOpen := b.state != BreakerClosed
	b.failures = 0
	b.probing = false
	b.state = BreakerClosed
	if wasOpen && b.onChange != nil {
		b.onChange(false)
	}
}

// Release ends a call that neither succeeded nor failed against the primary.
// The state is left alone and a half-open breaker may admit its next trial call.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// Failure records a primary storage failure
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if b.threshold <= 0 {
		return
	}
	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.threshold {
		wasClosed := b.state == BreakerClosed
		b.state = BreakerOpen
		b.openedAt = b.now()
		if wasClosed && b.onChange != nil {
			b.onChange(true)
		}
	}
}
