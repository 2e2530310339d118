package driver

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"

	"github.com/ardnew/softdrv/pkg"
	"github.com/ardnew/softdrv/pool"
)

// DeviceHandle is an opaque reference to a device owned by a [Driver].
type DeviceHandle struct {
	id uuid.UUID
}

func newDeviceHandle() DeviceHandle {
	return DeviceHandle{id: runtimex.PanicOnError1(uuid.NewV7())}
}

// String returns the handle in canonical UUID form.
func (h DeviceHandle) String() string {
	return h.id.String()
}

// MarshalText implements [encoding.TextMarshaler].
func (h DeviceHandle) MarshalText() ([]byte, error) {
	return h.id.MarshalText()
}

// IsZero returns true for the zero handle, which never names a device.
func (h DeviceHandle) IsZero() bool {
	return h.id == uuid.Nil
}

// DeviceIdentity is presented by the host when it adds a device.
type DeviceIdentity struct {
	HardwareID string
	InstanceID string
}

// String returns the identity as HardwareID\InstanceID.
func (id DeviceIdentity) String() string {
	if id.InstanceID == "" {
		return id.HardwareID
	}
	return id.HardwareID + `\` + id.InstanceID
}

// Matches returns true if the identity carries hardwareID.
func (id DeviceIdentity) Matches(hardwareID string) bool {
	return strings.EqualFold(id.HardwareID, hardwareID)
}

// DeviceContext is the per-device state owned by the driver.
type DeviceContext struct {
	handle   DeviceHandle
	identity DeviceIdentity
	overflow OverflowPolicy

	// Serializes lifecycle callbacks for this device
	pnpMutex sync.Mutex

	// Lifecycle state
	state State
	power PowerState
	mutex sync.RWMutex

	// Echo buffer
	block    *pool.Block
	stored   int
	bufMutex sync.Mutex

	queue *Queue

	binds   atomic.Int32
	unbinds atomic.Int32

	// Runs before each echo operation; tests use it to hold requests
	// in flight.
	echoHook func(*Request)
}

func newDeviceContext(h DeviceHandle, id DeviceIdentity, cfg *Config) *DeviceContext {
	return &DeviceContext{
		handle:   h,
		identity: id,
		overflow: cfg.Overflow,
		state:    StateUninitialized,
		power:    PowerD0,
	}
}

// Handle returns the device handle.
func (dc *DeviceContext) Handle() DeviceHandle {
	return dc.handle
}

// Identity returns the identity the device was added with.
func (dc *DeviceContext) Identity() DeviceIdentity {
	return dc.identity
}

// State returns the current lifecycle state.
func (dc *DeviceContext) State() State {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	return dc.state
}

// PowerState returns the last power state delivered to the device.
func (dc *DeviceContext) PowerState() PowerState {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	return dc.power
}

// BufferLength returns the capacity of the bound buffer, or zero once the
// buffer is released.
func (dc *DeviceContext) BufferLength() int {
	dc.bufMutex.Lock()
	defer dc.bufMutex.Unlock()
	if dc.block == nil {
		return 0
	}
	return dc.block.Len()
}

// Stored returns the number of valid bytes in the buffer.
func (dc *DeviceContext) Stored() int {
	dc.bufMutex.Lock()
	defer dc.bufMutex.Unlock()
	return dc.stored
}

// Queue returns the device queue.
func (dc *DeviceContext) Queue() *Queue {
	return dc.queue
}

// Releases returns how many times the buffer was bound and released.
func (dc *DeviceContext) Releases() (binds, unbinds int) {
	return int(dc.binds.Load()), int(dc.unbinds.Load())
}

// setState transitions the device and logs the change.
func (dc *DeviceContext) setState(state State) {
	dc.mutex.Lock()
	old := dc.state
	dc.state = state
	dc.mutex.Unlock()

	if old != state {
		pkg.LogDebug(pkg.ComponentDevice, "state transition",
			"device", dc.handle,
			"from", old.String(),
			"to", state.String())
	}
}

func (dc *DeviceContext) setPower(p PowerState) {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	dc.power = p
}

// expect returns ErrInvalidState unless the device is in one of states.
func (dc *DeviceContext) expect(op string, states ...State) error {
	cur := dc.State()
	for _, s := range states {
		if cur == s {
			return nil
		}
	}
	return fmt.Errorf("device %s: %s in state %s: %w", dc.handle, op, cur, pkg.ErrInvalidState)
}
