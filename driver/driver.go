package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/softdrv/pkg"
)

// PnP is the lifecycle surface the host drives.
type PnP interface {
	AddDevice(ctx context.Context, id DeviceIdentity) (DeviceHandle, error)
	Start(ctx context.Context, h DeviceHandle) error
	Stop(ctx context.Context, h DeviceHandle) error
	QueryRemove(ctx context.Context, h DeviceHandle) error
	Remove(ctx context.Context, h DeviceHandle) error
	Power(ctx context.Context, h DeviceHandle, p PowerState) error
	Unload(ctx context.Context) error
}

// IO is the request surface callers submit reads and writes through.
type IO interface {
	Submit(ctx context.Context, h DeviceHandle, r *Request) error
	Read(ctx context.Context, h DeviceHandle, buf []byte) (int, error)
	Write(ctx context.Context, h DeviceHandle, data []byte) (int, error)
	ReadAsync(ctx context.Context, h DeviceHandle, buf []byte, cb Callback) (*Request, error)
	WriteAsync(ctx context.Context, h DeviceHandle, data []byte, cb Callback) (*Request, error)
}

// Checker is implemented by allocators that can report leaked blocks.
type Checker interface {
	Check() error
}

// Driver is the echo driver: a lifecycle controller over a table of
// device contexts.
type Driver struct {
	config  Config
	binding ResourceBinding

	mutex    sync.RWMutex
	devices  map[DeviceHandle]*DeviceContext
	unloaded bool
}

var (
	_ PnP = (*Driver)(nil)
	_ IO  = (*Driver)(nil)
)

// New creates a driver. A nil config selects [NewConfig].
func New(cfg *Config) (*Driver, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := *cfg
	if c.BugCheck == nil {
		c.BugCheck = DefaultBugCheck
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	binding := c.Binding
	if binding == nil {
		binding = NewScopedBinding(c.Allocator)
	}

	pkg.LogInfo(pkg.ComponentDriver, "driver loaded",
		"hardwareID", c.HardwareID,
		"bufferLength", c.BufferLength,
		"overflow", c.Overflow.String(),
		"workers", c.Workers,
		"stopMode", c.StopMode.String())

	return &Driver{
		config:  c,
		binding: binding,
		devices: make(map[DeviceHandle]*DeviceContext),
	}, nil
}

// Config returns a copy of the driver configuration.
func (d *Driver) Config() Config {
	return d.config
}

// Devices returns the handles of all live devices.
func (d *Driver) Devices() []DeviceHandle {
	d.mutex.RLock()
	handles := make([]DeviceHandle, 0, len(d.devices))
	for h := range d.devices {
		handles = append(handles, h)
	}
	d.mutex.RUnlock()

	slices.SortFunc(handles, func(a, b DeviceHandle) int {
		return strings.Compare(a.String(), b.String())
	})
	return handles
}

// Device returns the context of a live device.
func (d *Driver) Device(h DeviceHandle) (*DeviceContext, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	dc, ok := d.devices[h]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", h, pkg.ErrNoDevice)
	}
	return dc, nil
}

// AddDevice creates a device context for id, binds its buffer and
// creates its queue. The device is left in [StateAdded]. If the buffer
// cannot be allocated, no device is created and the error wraps
// [pkg.ErrResourceExhausted].
func (d *Driver) AddDevice(ctx context.Context, id DeviceIdentity) (DeviceHandle, error) {
	if err := d.checkBlocking(ctx, "AddDevice"); err != nil {
		return DeviceHandle{}, err
	}
	if !id.Matches(d.config.HardwareID) {
		return DeviceHandle{}, fmt.Errorf("device %s: %w", id, pkg.ErrNoMatch)
	}

	dc := newDeviceContext(newDeviceHandle(), id, &d.config)
	if err := d.bind(dc); err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "add device failed",
			append([]any{"identity", id.String()}, pkg.ErrAttrs(err)...)...)
		return DeviceHandle{}, err
	}
	dc.queue = newQueue(dc.handle, d.config.Workers, dc.echo, d.violation)

	d.mutex.Lock()
	if d.unloaded {
		d.mutex.Unlock()
		dc.destroy(d)
		return DeviceHandle{}, fmt.Errorf("device %s: driver unloaded: %w", id, pkg.ErrInvalidState)
	}
	d.devices[dc.handle] = dc
	d.mutex.Unlock()

	dc.setState(StateAdded)
	pkg.LogInfo(pkg.ComponentDriver, "device added",
		"device", dc.handle,
		"identity", id.String(),
		"bufferLength", d.config.BufferLength)
	return dc.handle, nil
}

// Start opens the device queue. Valid from Added or Stopped.
func (d *Driver) Start(ctx context.Context, h DeviceHandle) error {
	if err := d.checkBlocking(ctx, "Start"); err != nil {
		return err
	}
	dc, err := d.Device(h)
	if err != nil {
		return err
	}

	dc.pnpMutex.Lock()
	defer dc.pnpMutex.Unlock()

	if err := dc.expect("start", StateAdded, StateStopped); err != nil {
		return err
	}
	dc.setState(StateStarted)
	dc.queue.open()

	pkg.LogInfo(pkg.ComponentDriver, "device started", "device", h)
	return nil
}

// Stop closes the device queue and waits for outstanding requests,
// cancelling queued ones under [StopPurge]. Valid from Started.
func (d *Driver) Stop(ctx context.Context, h DeviceHandle) error {
	if err := d.checkBlocking(ctx, "Stop"); err != nil {
		return err
	}
	dc, err := d.Device(h)
	if err != nil {
		return err
	}

	dc.pnpMutex.Lock()
	defer dc.pnpMutex.Unlock()

	if err := dc.expect("stop", StateStarted); err != nil {
		return err
	}
	dc.queue.stop(d.config.StopMode == StopPurge)
	dc.setState(StateStopped)

	pkg.LogInfo(pkg.ComponentDriver, "device stopped",
		"device", h,
		"mode", d.config.StopMode.String())
	return nil
}

// Drain blocks until the device has no outstanding requests or ctx is
// done. It changes no state.
func (d *Driver) Drain(ctx context.Context, h DeviceHandle) error {
	if err := d.checkBlocking(ctx, "Drain"); err != nil {
		return err
	}
	dc, err := d.Device(h)
	if err != nil {
		return err
	}
	return dc.queue.drain(ctx)
}

// QueryRemove vetoes removal with [pkg.ErrDeviceBusy] while the device
// has outstanding requests.
func (d *Driver) QueryRemove(ctx context.Context, h DeviceHandle) error {
	dc, err := d.Device(h)
	if err != nil {
		return err
	}
	if n := dc.queue.Outstanding(); n > 0 {
		return fmt.Errorf("device %s: %d request(s) outstanding: %w", h, n, pkg.ErrDeviceBusy)
	}
	return nil
}

// Remove purges the device queue, waits for in-flight requests, releases
// the buffer and deletes the device. Valid from any live state.
func (d *Driver) Remove(ctx context.Context, h DeviceHandle) error {
	if err := d.checkBlocking(ctx, "Remove"); err != nil {
		return err
	}
	dc, err := d.Device(h)
	if err != nil {
		return err
	}

	dc.pnpMutex.Lock()
	defer dc.pnpMutex.Unlock()

	// Lost a race with another Remove.
	if dc.State() == StateRemoved {
		return fmt.Errorf("device %s: %w", h, pkg.ErrNoDevice)
	}

	d.mutex.Lock()
	delete(d.devices, h)
	d.mutex.Unlock()

	err = dc.destroy(d)
	if err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "device removed with error",
			append([]any{"device", h}, pkg.ErrAttrs(err)...)...)
		return err
	}

	pkg.LogInfo(pkg.ComponentDriver, "device removed", "device", h)
	return nil
}

// destroy tears down a device: purge, wait, stop workers, release buffer.
func (dc *DeviceContext) destroy(d *Driver) error {
	if dc.queue != nil {
		dc.queue.stop(true)
		dc.queue.close()
	}
	err := d.unbind(dc)
	dc.setState(StateRemoved)
	return err
}

// Power records a power state change. Power transitions do not affect
// I/O availability; a started device stays started.
func (d *Driver) Power(ctx context.Context, h DeviceHandle, p PowerState) error {
	if err := d.checkBlocking(ctx, "Power"); err != nil {
		return err
	}
	dc, err := d.Device(h)
	if err != nil {
		return err
	}
	if p > PowerD3 {
		return fmt.Errorf("device %s: %s: %w", h, p, pkg.ErrInvalidParameter)
	}

	dc.pnpMutex.Lock()
	defer dc.pnpMutex.Unlock()

	if err := dc.expect("power", StateAdded, StateStarted, StateStopped); err != nil {
		return err
	}
	old := dc.PowerState()
	dc.setPower(p)

	pkg.LogDebug(pkg.ComponentDevice, "power transition",
		"device", h,
		"from", old.String(),
		"to", p.String(),
		"state", dc.State().String())
	return nil
}

// Unload removes every device and refuses further adds. If the allocator
// implements [Checker], the result of its leak check is returned.
func (d *Driver) Unload(ctx context.Context) error {
	if err := d.checkBlocking(ctx, "Unload"); err != nil {
		return err
	}

	d.mutex.Lock()
	d.unloaded = true
	d.mutex.Unlock()

	var errs []error
	for _, h := range d.Devices() {
		if err := d.Remove(ctx, h); err != nil && !errors.Is(err, pkg.ErrNoDevice) {
			errs = append(errs, err)
		}
	}

	if c, ok := d.config.Allocator.(Checker); ok {
		if err := c.Check(); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		pkg.LogWarn(pkg.ComponentDriver, "driver unloaded with errors", pkg.ErrAttrs(err)...)
		return err
	}
	pkg.LogInfo(pkg.ComponentDriver, "driver unloaded")
	return nil
}
