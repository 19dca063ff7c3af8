// Package panicerr turns panics in background runners into errors.
package panicerr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// SafeContext wraps a runner so a panic surfaces as an error naming the runner,
// with the stack logged once at the point of recovery.
func SafeContext(name string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn(ctx)
		})
		if r := catcher.Recovered(); r != nil {
			slog.ErrorContext(ctx, "runner panicked", "runner", name, "panic", r.Value, "stack", string(r.Stack))
			return fmt.Errorf("%s: %w", name, r.AsError())
		}
		return err
	}
}
