// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry re-invokes a single operation attempt under a bounded,
// exponential backoff policy that honours rate-limit hints.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// Predicate decides whether err is worth another attempt.
type Predicate func(err error) bool

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	// Number is the 1-based attempt that failed
	Number int

	// Err is the error it failed with
	Err error

	// Delay is the wait before the next attempt
	Delay time.Duration
}

// Policy is a retry schedule. A nil *Policy means "run once".
type Policy struct {
	// MaxAttempts is the total number of attempts, first included.
	// Must be >= 1.
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxDelay caps every wait, rate-limit hints included.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Factor multiplies the delay after each attempt. Must be >= 1.
	Factor float64 `yaml:"factor"`

	// Jitter adds up to this fraction of the delay at random (0-1).
	Jitter float64 `yaml:"jitter"`

	// ShouldRetry defaults to DefaultShouldRetry when nil.
	ShouldRetry Predicate `yaml:"-"`

	// OnRetry, if set, is called before each backoff sleep.
	OnRetry func(Attempt) `yaml:"-"`
}

// DefaultPolicy returns three attempts with 200ms base delay doubling up to
// 30s and 20% jitter.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Factor:      2.0,
		Jitter:      0.2,
		ShouldRetry: DefaultShouldRetry,
	}
}

// Validate checks that the policy is finite and well formed.
func (p *Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base_delay must be non-negative, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("max_delay (%v) must be >= base_delay (%v)", p.MaxDelay, p.BaseDelay)
	}
	if p.Factor < 1.0 {
		return fmt.Errorf("factor must be >= 1.0, got %f", p.Factor)
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0 and 1, got %f", p.Jitter)
	}
	return nil
}

// Backoff returns the wait after the given failed attempt. A rate-limit
// error carrying a non-negative retry-after hint sets the wait to exactly
// that hint, capped at MaxDelay. Negative hints fall back to the
// exponential schedule.
func (p *Policy) Backoff(attempt int, lastErr error) time.Duration {
	if hint, ok := retryAfter(lastErr); ok {
		return min(hint, p.MaxDelay)
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		delay += rand.Float64() * delay * p.Jitter
	}
	return min(time.Duration(delay), p.MaxDelay)
}

func (p *Policy) shouldRetry(err error) bool {
	if operrors.IsCanceled(err) {
		return false
	}
	if p.ShouldRetry == nil {
		return DefaultShouldRetry(err)
	}
	return p.ShouldRetry(err)
}

func retryAfter(err error) (time.Duration, bool) {
	typed, ok := operrors.AsTyped(err)
	if !ok {
		return 0, false
	}
	rl, ok := typed.(*operrors.RateLimitError)
	if !ok || rl.RetryAfterSeconds == nil || !(*rl.RetryAfterSeconds >= 0) {
		return 0, false
	}
	return rl.RetryAfter(), true
}

// Do calls fn until it succeeds, the predicate rejects the error, the
// attempts run out, or ctx is cancelled. With a nil policy fn runs exactly
// once.
//
// The last error seen is local to this call, so concurrent calls sharing a
// policy never observe each other's rate-limit hints.
func Do[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}

	var zero T
	var lastErr error
	maxAttempts := max(p.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= maxAttempts || !p.shouldRetry(lastErr) {
			return zero, lastErr
		}

		if ctx.Err() != nil {
			return zero, interrupted(ctx, attempt, lastErr)
		}

		delay := p.Backoff(attempt, lastErr)
		if p.OnRetry != nil {
			p.OnRetry(Attempt{Number: attempt, Err: lastErr, Delay: delay})
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, interrupted(ctx, attempt, lastErr)
		}
	}
}

func interrupted(ctx context.Context, attempts int, lastErr error) error {
	return fmt.Errorf("retry interrupted after %d attempt(s): %w (last error: %w)", attempts, ctx.Err(), lastErr)
}

// DefaultShouldRetry retries rate limits, server errors and transport-level
// failures. Caller-visible errors surface immediately.
func DefaultShouldRetry(err error) bool {
	if err == nil || operrors.IsCanceled(err) {
		return false
	}
	switch operrors.KindOf(err) {
	case operrors.KindRateLimit,
		operrors.KindServer,
		operrors.KindHTTPTransport,
		operrors.KindStreamRead:
		return true
	default:
		return false
	}
}
