package ratelimit

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"
)

// WaitKind selects which pacing interval to draw from.
type WaitKind int

const (
	// WaitPost paces after a post item that consumed provider quota. Post
	// fetches are heavier, so the interval is wider.
	WaitPost WaitKind = iota
	// WaitClip paces after a clip item that consumed provider quota.
	WaitClip
)

// Interval bounds one randomized delay.
type Interval struct {
	Min time.Duration
	Max time.Duration
}

// Limiter blocks the calling goroutine for a duration drawn uniformly from a
// kind-specific interval. Counters reset at process start; there is no
// cross-run persistence.
type Limiter struct {
	post  Interval
	clip  Interval
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
	waits atomic.Int64
}

// Option configures optional Limiter behavior.
type Option func(*Limiter)

// WithSleepFunc replaces the blocking sleep, used by tests to record
// durations without waiting.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = fn }
}

// WithRand seeds the interval draws deterministically.
func WithRand(rng *rand.Rand) Option {
	return func(l *Limiter) { l.rng = rng }
}

// New constructs a limiter with the given pacing intervals.
func New(post, clip Interval, opts ...Option) *Limiter {
	l := &Limiter{
		post:  post,
		clip:  clip,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks for a random duration from the kind's interval. It returns
// early with the context error on cancellation.
func (l *Limiter) Wait(ctx context.Context, kind WaitKind) error {
	interval := l.post
	if kind == WaitClip {
		interval = l.clip
	}
	l.waits.Add(1)
	return l.sleep(ctx, l.draw(interval))
}

// WaitCount reports how many waits have been issued since process start.
func (l *Limiter) WaitCount() int64 {
	return l.waits.Load()
}

func (l *Limiter) draw(interval Interval) time.Duration {
	if interval.Max <= interval.Min {
		return interval.Min
	}
	span := interval.Max - interval.Min
	return interval.Min + time.Duration(l.rng.Int63n(int64(span)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
