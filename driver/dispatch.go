package driver

import (
	"context"
	"fmt"

	"github.com/ardnew/softdrv/pkg"
)

type completionKey struct{}

// withCompletionContext marks ctx as a completion context.
func withCompletionContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, completionKey{}, true)
}

// IsCompletionContext returns true if ctx was handed to a completion
// [Callback]. Code running under such a context must not block.
func IsCompletionContext(ctx context.Context) bool {
	v, _ := ctx.Value(completionKey{}).(bool)
	return v
}

// checkBlocking reports a contract violation if op, a blocking call, is
// made from a completion context.
func (d *Driver) checkBlocking(ctx context.Context, op string) error {
	if !IsCompletionContext(ctx) {
		return nil
	}
	err := fmt.Errorf("%w: blocking call %s from completion context", pkg.ErrContractViolation, op)
	d.violation(err)
	return err
}

// violation logs err and hands it to the configured bug check.
func (d *Driver) violation(err error) {
	pkg.LogError(pkg.ComponentDriver, "contract violation", pkg.ErrAttrs(err)...)
	d.config.BugCheck(err)
}
