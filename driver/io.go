package driver

import (
	"context"
	"fmt"

	"github.com/ardnew/softdrv/pkg"
)

// Submit hands r to the queue of device h.
//
// Outside [StateStarted] it returns an error wrapping
// [pkg.ErrDeviceNotReady] and r is left unsubmitted. A synchronous
// request blocks until it completes; if ctx ends first the request is
// cancelled and Submit still waits for its completion.
func (d *Driver) Submit(ctx context.Context, h DeviceHandle, r *Request) error {
	if r == nil {
		return fmt.Errorf("submit nil request: %w", pkg.ErrInvalidParameter)
	}
	blocking := r.Mode() == ModeSynchronous
	if blocking {
		if err := d.checkBlocking(ctx, "synchronous "+r.direction.String()); err != nil {
			return err
		}
	}

	dc, err := d.Device(h)
	if err != nil {
		return err
	}

	if err := dc.queue.submit(ctx, r); err != nil {
		return err
	}

	if blocking {
		select {
		case <-r.Done():
		case <-ctx.Done():
			r.Cancel()
			<-r.Done()
		}
	}
	return nil
}

// Read reads up to len(buf) bytes from device h, blocking until the
// request completes.
func (d *Driver) Read(ctx context.Context, h DeviceHandle, buf []byte) (int, error) {
	r := NewReadRequest(buf).WithMode(ModeSynchronous)
	if err := d.Submit(ctx, h, r); err != nil {
		return 0, err
	}
	return r.Result()
}

// Write writes data to device h, blocking until the request completes.
func (d *Driver) Write(ctx context.Context, h DeviceHandle, data []byte) (int, error) {
	r := NewWriteRequest(data).WithMode(ModeSynchronous)
	if err := d.Submit(ctx, h, r); err != nil {
		return 0, err
	}
	return r.Result()
}

// ReadAsync submits a read to device h and returns without waiting.
// cb, if set, runs exactly once on completion.
func (d *Driver) ReadAsync(ctx context.Context, h DeviceHandle, buf []byte, cb Callback) (*Request, error) {
	r := NewReadRequest(buf).WithCallback(cb)
	if err := d.Submit(ctx, h, r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteAsync submits a write to device h and returns without waiting.
// cb, if set, runs exactly once on completion.
func (d *Driver) WriteAsync(ctx context.Context, h DeviceHandle, data []byte, cb Callback) (*Request, error) {
	r := NewWriteRequest(data).WithCallback(cb)
	if err := d.Submit(ctx, h, r); err != nil {
		return nil, err
	}
	return r, nil
}
