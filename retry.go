package main

import (
	"fmt"
	"time"
)

var (
	// TODO: is there some better way to allow for stubbing delays for tests?
	concreteSleepFunc = time.Sleep
)

// withRetry invokes op up to maxAttempts times, sleeping a fixed delay
// between attempts. No backoff, no jitter. The exhausted error wraps the
// last error op returned.
func withRetry(op func() error, maxAttempts int, delay time.Duration) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			concreteSleepFunc(delay)
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("Retries exhausted after %d attempts: %w", maxAttempts, lastErr)
}
