// internal/browser/session/context_utils.go
package session

import (
	"context"
)

// CombineContext returns a context that carries the values of primary (the
// chromedp target lives there) and is canceled when either primary or
// secondary is done. The caller must call the returned cancel func.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}

// Detach returns a context with the values of ctx but none of its deadline or
// cancellation. Cleanup such as the final screenshot runs on it after the
// operational context is gone.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
