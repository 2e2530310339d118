package driver

import (
	"errors"
	"fmt"

	"github.com/bassosimone/runtimex"

	"github.com/ardnew/softdrv/pkg"
	"github.com/ardnew/softdrv/pool"
)

// ResourceBinding acquires a device buffer at add time and gives it back
// at remove time.
//
// The core calls Bind once per device and Unbind at most once, after the
// device queue has no outstanding requests.
type ResourceBinding interface {
	Bind(owner string, tag pool.Tag, size int) (*pool.Block, error)
	Unbind(b *pool.Block) error
}

// ScopedBinding returns each device buffer to its allocator on remove.
type ScopedBinding struct {
	allocator pool.Allocator
}

var _ ResourceBinding = (*ScopedBinding)(nil)

// NewScopedBinding creates a binding over alloc.
func NewScopedBinding(alloc pool.Allocator) *ScopedBinding {
	return &ScopedBinding{allocator: alloc}
}

// Bind implements [ResourceBinding].
func (s *ScopedBinding) Bind(owner string, tag pool.Tag, size int) (*pool.Block, error) {
	return s.allocator.Allocate(owner, tag, size)
}

// Unbind implements [ResourceBinding].
func (s *ScopedBinding) Unbind(b *pool.Block) error {
	return s.allocator.Free(b)
}

// bind acquires the device buffer. Failure leaves the device without a
// buffer and returns an error wrapping ErrResourceExhausted.
func (d *Driver) bind(dc *DeviceContext) error {
	b, err := d.binding.Bind(dc.handle.String(), d.config.PoolTag, d.config.BufferLength)
	if err != nil {
		if !errors.Is(err, pkg.ErrResourceExhausted) {
			err = fmt.Errorf("%w: %w", pkg.ErrResourceExhausted, err)
		}
		return fmt.Errorf("device %s: bind buffer: %w", dc.handle, err)
	}
	runtimex.Assert(b != nil && b.Len() == d.config.BufferLength)

	dc.bufMutex.Lock()
	dc.block = b
	dc.stored = 0
	dc.bufMutex.Unlock()
	dc.binds.Add(1)
	return nil
}

// unbind releases the device buffer. Releasing with requests outstanding
// or releasing twice is a contract violation.
func (d *Driver) unbind(dc *DeviceContext) error {
	if n := dc.queue.Outstanding(); n > 0 {
		err := fmt.Errorf("%w: device %s: release buffer with %d request(s) outstanding",
			pkg.ErrContractViolation, dc.handle, n)
		d.violation(err)
		return err
	}

	dc.bufMutex.Lock()
	b := dc.block
	dc.block = nil
	dc.stored = 0
	dc.bufMutex.Unlock()

	if b == nil {
		err := fmt.Errorf("%w: device %s: buffer released twice",
			pkg.ErrContractViolation, dc.handle)
		d.violation(err)
		return err
	}

	if err := d.binding.Unbind(b); err != nil {
		if errors.Is(err, pkg.ErrDoubleFree) || errors.Is(err, pkg.ErrUnknownBlock) {
			err = fmt.Errorf("%w: device %s: %w", pkg.ErrContractViolation, dc.handle, err)
			d.violation(err)
		}
		return err
	}
	dc.unbinds.Add(1)
	runtimex.Assert(dc.unbinds.Load() <= dc.binds.Load())
	return nil
}
