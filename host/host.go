package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/softdrv/driver"
	"github.com/ardnew/softdrv/pkg"
)

// MaxPendingArrivals is the capacity of the arrival notification channel.
const MaxPendingArrivals = 64

// Manager is a simulated plug-and-play manager. It enumerates devices
// into a driver and delivers the lifecycle callbacks in order.
type Manager struct {
	pnp driver.PnP

	// Attached devices
	devices  map[driver.DeviceHandle]driver.DeviceIdentity
	instance int
	mutex    sync.RWMutex

	// Event channel
	arrived chan driver.DeviceHandle

	// Callbacks
	onAttach func(driver.DeviceHandle)
	onDetach func(driver.DeviceHandle)
}

// New creates a manager driving pnp.
func New(pnp driver.PnP) *Manager {
	return &Manager{
		pnp:     pnp,
		devices: make(map[driver.DeviceHandle]driver.DeviceIdentity),
		arrived: make(chan driver.DeviceHandle, MaxPendingArrivals),
	}
}

// Attach enumerates a new device instance with hardwareID: the driver
// adds the device and then starts it. A device that fails to start is
// removed again.
func (m *Manager) Attach(ctx context.Context, hardwareID string) (driver.DeviceHandle, error) {
	m.mutex.Lock()
	m.instance++
	id := driver.DeviceIdentity{
		HardwareID: hardwareID,
		InstanceID: fmt.Sprintf("%04d", m.instance),
	}
	m.mutex.Unlock()

	h, err := m.pnp.AddDevice(ctx, id)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHost, "add device failed",
			append([]any{"identity", id.String()}, pkg.ErrAttrs(err)...)...)
		return driver.DeviceHandle{}, err
	}

	if err := m.pnp.Start(ctx, h); err != nil {
		pkg.LogWarn(pkg.ComponentHost, "start device failed",
			append([]any{"device", h}, pkg.ErrAttrs(err)...)...)
		return driver.DeviceHandle{}, errors.Join(err, m.pnp.Remove(ctx, h))
	}

	m.mutex.Lock()
	m.devices[h] = id
	cb := m.onAttach
	m.mutex.Unlock()

	select {
	case m.arrived <- h:
	default:
	}
	if cb != nil {
		cb(h)
	}

	pkg.LogInfo(pkg.ComponentHost, "device attached",
		"device", h,
		"identity", id.String())
	return h, nil
}

// Detach asks the driver whether h can be removed and removes it. A veto
// from the driver is returned and the device stays attached.
func (m *Manager) Detach(ctx context.Context, h driver.DeviceHandle) error {
	if err := m.pnp.QueryRemove(ctx, h); err != nil {
		pkg.LogInfo(pkg.ComponentHost, "removal vetoed",
			append([]any{"device", h}, pkg.ErrAttrs(err)...)...)
		return err
	}
	return m.remove(ctx, h, "device detached")
}

// Eject removes h without asking the driver first, as on surprise
// removal. Queued requests are cancelled.
func (m *Manager) Eject(ctx context.Context, h driver.DeviceHandle) error {
	return m.remove(ctx, h, "device ejected")
}

func (m *Manager) remove(ctx context.Context, h driver.DeviceHandle, msg string) error {
	err := m.pnp.Remove(ctx, h)

	// The device is gone from the driver even if releasing it failed.
	m.mutex.Lock()
	_, known := m.devices[h]
	delete(m.devices, h)
	cb := m.onDetach
	m.mutex.Unlock()

	if known && cb != nil {
		cb(h)
	}
	if err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentHost, msg, "device", h)
	return nil
}

// Suspend stops h and moves it to D3.
func (m *Manager) Suspend(ctx context.Context, h driver.DeviceHandle) error {
	if err := m.pnp.Stop(ctx, h); err != nil {
		return err
	}
	return m.pnp.Power(ctx, h, driver.PowerD3)
}

// Resume moves h to D0 and starts it.
func (m *Manager) Resume(ctx context.Context, h driver.DeviceHandle) error {
	if err := m.pnp.Power(ctx, h, driver.PowerD0); err != nil {
		return err
	}
	return m.pnp.Start(ctx, h)
}

// Shutdown ejects every attached device and unloads the driver. The
// driver's leak check, if any, is part of the returned error.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, h := range m.Devices() {
		if err := m.Eject(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.pnp.Unload(ctx); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHost, "shutdown with errors", pkg.ErrAttrs(err)...)
		return err
	}
	pkg.LogInfo(pkg.ComponentHost, "shutdown complete")
	return nil
}

// Devices returns the attached devices.
func (m *Manager) Devices() []driver.DeviceHandle {
	m.mutex.RLock()
	handles := make([]driver.DeviceHandle, 0, len(m.devices))
	for h := range m.devices {
		handles = append(handles, h)
	}
	m.mutex.RUnlock()

	slices.SortFunc(handles, func(a, b driver.DeviceHandle) int {
		return strings.Compare(a.String(), b.String())
	})
	return handles
}

// Identity returns the identity h was attached with.
func (m *Manager) Identity(h driver.DeviceHandle) (driver.DeviceIdentity, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	id, ok := m.devices[h]
	return id, ok
}

// WaitDevice blocks until a device is attached.
func (m *Manager) WaitDevice(ctx context.Context) (driver.DeviceHandle, error) {
	select {
	case <-ctx.Done():
		return driver.DeviceHandle{}, ctx.Err()
	case h := <-m.arrived:
		return h, nil
	}
}

// SetOnAttach sets the callback for device attachment.
func (m *Manager) SetOnAttach(cb func(driver.DeviceHandle)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onAttach = cb
}

// SetOnDetach sets the callback for device removal.
func (m *Manager) SetOnDetach(cb func(driver.DeviceHandle)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onDetach = cb
}
