// Package retry runs a unit of work under a bounded retry policy.
//
// Work reports how a failure should be treated by how it wraps the error:
// plain errors are retried, Fail marks an error terminal, and Drop marks the
// job's target as gone so no further attempts are made. Run returns an *Error
// carrying the classification, the last cause, and the number of attempts.
//
//	answer, err := retry.Run(ctx, retry.Policy{
//		MaxAttempts: 3,
//		Backoff:     retry.Tiered(5*time.Second, 10*time.Second),
//	}, func(ctx context.Context, attempt int) (string, error) {
//		return ask(ctx)
//	})
package retry
