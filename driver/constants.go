package driver

import "fmt"

// Defaults used by [NewConfig].
const (
	// DefaultHardwareID is the hardware ID the echo driver binds to.
	DefaultHardwareID = `Root\ECHO`

	// DefaultBufferLength is the per-device echo buffer capacity (40 KiB).
	DefaultBufferLength = 40 * 1024

	// DefaultWorkers is the number of dispatch goroutines per device.
	DefaultWorkers = 4

	// DefaultPoolTag is the pool tag used for device buffers.
	DefaultPoolTag = "Echo"

	// MaxWorkers bounds the dispatch goroutines per device.
	MaxWorkers = 256
)

// Device lifecycle states.
const (
	StateUninitialized State = 0 // Context allocated, buffer not yet bound
	StateAdded         State = 1 // Buffer bound, queue created, I/O refused
	StateStarted       State = 2 // Queue accepting I/O
	StateStopped       State = 3 // Queue drained, I/O refused
	StateRemoved       State = 4 // Buffer released, context gone (terminal)
)

// State represents a device lifecycle state.
type State uint8

// String returns a human-readable state description.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAdded:
		return "Added"
	case StateStarted:
		return "Started"
	case StateStopped:
		return "Stopped"
	case StateRemoved:
		return "Removed"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}

// Request directions.
const (
	DirectionRead  Direction = 0 // Copy out of the device buffer
	DirectionWrite Direction = 1 // Copy into the device buffer
)

// Direction is the data direction of an I/O request.
type Direction uint8

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", d)
	}
}

// Request modes.
const (
	ModeAsynchronous Mode = 0 // Submit returns immediately
	ModeSynchronous  Mode = 1 // Submit blocks until completion
)

// Mode selects whether the submitter waits for completion.
type Mode uint8

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAsynchronous:
		return "async"
	case ModeSynchronous:
		return "sync"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}

// Overflow policies for writes larger than the device buffer.
const (
	// OverflowTruncate stores the first BufferLength bytes and completes
	// the write successfully with a short transfer length.
	OverflowTruncate OverflowPolicy = 0

	// OverflowReject fails the write with [pkg.ErrBufferOverflow] and
	// leaves the buffer untouched.
	OverflowReject OverflowPolicy = 1
)

// OverflowPolicy selects how oversized writes are handled.
type OverflowPolicy uint8

// String returns the policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowTruncate:
		return "truncate"
	case OverflowReject:
		return "reject"
	default:
		return fmt.Sprintf("overflow(%d)", p)
	}
}

// Stop modes.
const (
	// StopPurge cancels queued requests; requests already in the echo
	// operation run to completion.
	StopPurge StopMode = 0

	// StopDrain lets every queued request complete normally.
	StopDrain StopMode = 1
)

// StopMode selects how Stop resolves outstanding requests.
type StopMode uint8

// String returns the mode name.
func (m StopMode) String() string {
	switch m {
	case StopPurge:
		return "purge"
	case StopDrain:
		return "drain"
	default:
		return fmt.Sprintf("stop(%d)", m)
	}
}

// Device power states.
const (
	PowerD0 PowerState = 0 // Working
	PowerD1 PowerState = 1 // Light sleep
	PowerD2 PowerState = 2 // Deeper sleep
	PowerD3 PowerState = 3 // Off
)

// PowerState is a device power state delivered by the power manager.
type PowerState uint8

// String returns the state name.
func (p PowerState) String() string {
	switch p {
	case PowerD0, PowerD1, PowerD2, PowerD3:
		return fmt.Sprintf("D%d", p)
	default:
		return fmt.Sprintf("power(%d)", p)
	}
}

// IsWorking returns true for D0.
func (p PowerState) IsWorking() bool {
	return p == PowerD0
}
