package testutil

import (
	"testing"
	"time"
)

// Eventually polls fn until it returns nil or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, interval time.Duration, fn func() error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	attempts := 0
	var lastErr error

	for {
		attempts++
		lastErr = fn()
		if lastErr == nil {
			return
		}
		if !time.Now().Add(interval).Before(deadline) {
			break
		}
		time.Sleep(interval)
	}
	t.Fatalf("condition not met after %d attempts: %v", attempts, lastErr)
}
