// Package dispatchwait builds an echo driver whose write completions
// make a blocking lifecycle call.
//
// Every asynchronous write submitted through [Driver.WriteAsync] stops
// its device from inside the completion callback. Completion callbacks
// run in a completion context where blocking is forbidden, so the core
// reports each such call as a contract violation through
// [driver.Config.BugCheck] and refuses it.
package dispatchwait

import (
	"context"
	"sync"

	"github.com/ardnew/softdrv/driver"
	"github.com/ardnew/softdrv/pkg"
)

// Driver wraps [driver.Driver] with a faulty write completion.
type Driver struct {
	*driver.Driver

	mutex  sync.Mutex
	errors []error
}

// New creates the faulty driver. A nil cfg selects [driver.NewConfig].
func New(cfg *driver.Config) (*Driver, error) {
	d, err := driver.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Driver{Driver: d}, nil
}

// WriteAsync submits a write whose completion stops device h before
// calling cb.
func (d *Driver) WriteAsync(ctx context.Context, h driver.DeviceHandle, data []byte, cb driver.Callback) (*driver.Request, error) {
	return d.Driver.WriteAsync(ctx, h, data, func(ctx context.Context, r *driver.Request) {
		err := d.Driver.Stop(ctx, h)
		if err != nil {
			pkg.LogDebug(pkg.ComponentDriver, "stop from completion refused",
				append([]any{"device", h, "request", r.ID()}, pkg.ErrAttrs(err)...)...)
		}
		d.mutex.Lock()
		d.errors = append(d.errors, err)
		d.mutex.Unlock()

		if cb != nil {
			cb(ctx, r)
		}
	})
}

// StopErrors returns the result of every Stop attempted from a
// completion callback.
func (d *Driver) StopErrors() []error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]error(nil), d.errors...)
}
