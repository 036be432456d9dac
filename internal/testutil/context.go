package testutil

import (
	"context"
	"testing"
	"time"
)

// ContextWithTimeout returns a context that expires after d and is cancelled
// automatically when the test finishes.
func ContextWithTimeout(t testing.TB, d time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)

	return ctx
}
