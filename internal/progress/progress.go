package progress

import (
	"context"
	"fmt"
)

// Func is a callback for reporting progress messages.
type Func func(msg string)

type progressKey struct{}

// With returns a context carrying the given progress callback.
func With(ctx context.Context, fn Func) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// Report calls the progress callback in ctx, if any.
// Safe to call when no callback is set (API and scheduler runs).
func Report(ctx context.Context, format string, args ...any) {
	if fn, ok := ctx.Value(progressKey{}).(Func); ok && fn != nil {
		fn(fmt.Sprintf(format, args...))
	}
}
