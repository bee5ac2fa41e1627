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

import "time"

// Backoff returns the delay before the run following a failed attempt.
// attempt is the 1-based number of the attempt that just failed.
type Backoff func(attempt int) time.Duration

// Policy bounds how a unit of work is retried.
type Policy struct {
	// MaxAttempts is the total number of runs, including the first.
	MaxAttempts int
	Backoff     Backoff
	// OnRetry, if set, is called after a retryable failure and before the
	// wait. It must not block for long.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	if p.Backoff == nil {
		return ErrNoBackoff
	}
	return nil
}

// Constant waits the same delay before every retry.
func Constant(delay time.Duration) Backoff {
	return func(int) time.Duration { return delay }
}

// Tiered waits first before the first retry and rest before every later one.
func Tiered(first, rest time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt <= 1 {
			return first
		}
		return rest
	}
}

// Exponential waits base * 2^(attempt-1).
func Exponential(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		delay := base
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
		return delay
	}
}

// AnswerPolicy is the policy for AI answer jobs: retries after 5 and then
// 10 units.
func AnswerPolicy(maxAttempts int, unit time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Backoff: Tiered(5*unit, 10*unit)}
}

// IngestionPolicy is the policy for document ingestion jobs: retries after
// 60 units, doubling each time.
func IngestionPolicy(maxAttempts int, unit time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Backoff: Exponential(60 * unit)}
}
