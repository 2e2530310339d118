package host

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ardnew/softdrv/driver"
)

// File is an open handle to a device, the way an application sees it.
type File struct {
	io     driver.IO
	handle driver.DeviceHandle
	closed atomic.Bool

	// Asynchronous requests not yet completed
	pending map[uuid.UUID]*driver.Request
	wg      sync.WaitGroup
	mutex   sync.Mutex
}

// Open returns a file for device h.
func Open(io driver.IO, h driver.DeviceHandle) *File {
	return &File{
		io:      io,
		handle:  h,
		pending: make(map[uuid.UUID]*driver.Request),
	}
}

// Handle returns the device handle.
func (f *File) Handle() driver.DeviceHandle {
	return f.handle
}

func (f *File) checkOpen() error {
	if f.closed.Load() {
		return fmt.Errorf("device %s: %w", f.handle, os.ErrClosed)
	}
	return nil
}

// Read reads from the device, blocking until the request completes.
func (f *File) Read(ctx context.Context, buf []byte) (int, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	return f.io.Read(ctx, f.handle, buf)
}

// Write writes to the device, blocking until the request completes.
func (f *File) Write(ctx context.Context, data []byte) (int, error) {
	if err := f.checkOpen(); err != nil {
		return 0, err
	}
	return f.io.Write(ctx, f.handle, data)
}

// ReadAsync submits a read and returns without waiting.
func (f *File) ReadAsync(ctx context.Context, buf []byte, cb driver.Callback) (*driver.Request, error) {
	return f.async(cb, func(cb driver.Callback) (*driver.Request, error) {
		return f.io.ReadAsync(ctx, f.handle, buf, cb)
	})
}

// WriteAsync submits a write and returns without waiting.
func (f *File) WriteAsync(ctx context.Context, data []byte, cb driver.Callback) (*driver.Request, error) {
	return f.async(cb, func(cb driver.Callback) (*driver.Request, error) {
		return f.io.WriteAsync(ctx, f.handle, data, cb)
	})
}

// async tracks a request from submission to completion.
func (f *File) async(cb driver.Callback, submit func(driver.Callback) (*driver.Request, error)) (*driver.Request, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	r, err := submit(func(ctx context.Context, r *driver.Request) {
		defer f.wg.Done()
		f.mutex.Lock()
		delete(f.pending, r.ID())
		f.mutex.Unlock()
		if cb != nil {
			cb(ctx, r)
		}
	})
	if err != nil {
		f.wg.Done()
		return nil, err
	}

	f.mutex.Lock()
	if !r.IsCompleted() {
		f.pending[r.ID()] = r
	}
	f.mutex.Unlock()
	return r, nil
}

// Pending returns the number of asynchronous requests not yet completed.
func (f *File) Pending() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.pending)
}

// Close cancels the file's queued asynchronous requests and waits until
// all of them have completed.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("device %s: %w", f.handle, os.ErrClosed)
	}

	f.mutex.Lock()
	pending := make([]*driver.Request, 0, len(f.pending))
	for _, r := range f.pending {
		pending = append(pending, r)
	}
	f.mutex.Unlock()

	for _, r := range pending {
		r.Cancel()
	}
	f.wg.Wait()
	return nil
}
