// Copyright 2025 Poiesic Systems
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


package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Class says how a failure is treated.
type Class int

const (
	// Retryable failures are run again until attempts run out.
	Retryable Class = iota
	// Terminal failures stop immediately.
	Terminal
	// Dropped means the job's target no longer exists. Not a failure.
	Dropped
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	case Dropped:
		return "dropped"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Fail marks err as terminal: Run stops without further attempts.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: Terminal, err: err}
}

// Drop marks err as a vanished target: Run stops and reports Dropped.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: Dropped, err: err}
}

// Classify returns the class err was marked with, Retryable by default.
func Classify(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return Retryable
}

// Error is the final outcome of a run that did not succeed.
type Error struct {
	Class    Class
	Err      error
	Attempts int
}

func (e *Error) Error() string {
	switch e.Class {
	case Dropped:
		return fmt.Sprintf("dropped after %d attempt(s): %v", e.Attempts, e.Err)
	case Terminal:
		return fmt.Sprintf("failed permanently after %d attempt(s): %v", e.Attempts, e.Err)
	default:
		return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsDropped reports whether err is a Dropped outcome.
func IsDropped(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Class == Dropped
}

// Run calls work until it succeeds, fails terminally, drops, or uses up
// policy.MaxAttempts. attempt passed to work is 1-based.
//
// If ctx is canceled, Run returns ctx.Err() unwrapped, so callers can tell a
// shutdown apart from a failure.
func Run[T any](ctx context.Context, policy Policy, work func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := work(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return result, nil
		}

		// A canceled context surfaces through work as well
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		class := Classify(err)
		if class != Retryable {
			return zero, &Error{Class: class, Err: err, Attempts: attempt}
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Backoff(attempt)
		slog.Debug("operation failed, will retry",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "delay", delay, "error", err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &Error{Class: Retryable, Err: lastErr, Attempts: policy.MaxAttempts}
}

// Do is Run for work without a result.
func Do(ctx context.Context, policy Policy, work func(ctx context.Context, attempt int) error) error {
	_, err := Run(ctx, policy, func(ctx context.Context, attempt int) (struct{}, error) {
		return struct{}{}, work(ctx, attempt)
	})
	return err
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
