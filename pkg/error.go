package pkg

import "errors"

// Driver model errors.
var (
	// ErrResourceExhausted indicates the pool allocator could not satisfy a request.
	ErrResourceExhausted = errors.New("insufficient resources")

	// ErrDeviceNotReady indicates I/O was submitted outside the started state.
	ErrDeviceNotReady = errors.New("device not ready")

	// ErrCancelled indicates a request was cancelled before it was processed.
	ErrCancelled = errors.New("request cancelled")

	// ErrFailed indicates the echo operation could not complete a request.
	ErrFailed = errors.New("request failed")

	// ErrContractViolation indicates a programming error in the driver core:
	// double completion, release while requests are pending, double free or
	// a blocking call from completion context. It is raised by panicking.
	ErrContractViolation = errors.New("contract violation")

	// ErrNoDevice indicates the device handle does not name a live device.
	ErrNoDevice = errors.New("device not present")

	// ErrInvalidState indicates an invalid lifecycle transition.
	ErrInvalidState = errors.New("invalid device state")

	// ErrDeviceBusy indicates the device has outstanding I/O.
	ErrDeviceBusy = errors.New("device busy")

	// ErrBufferOverflow indicates a write larger than the device buffer
	// under the reject overflow policy.
	ErrBufferOverflow = errors.New("buffer overflow")

	// ErrInvalidBufferState indicates the device buffer is not bound.
	ErrInvalidBufferState = errors.New("invalid buffer state")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoMatch indicates the device identity does not match the driver.
	ErrNoMatch = errors.New("hardware id mismatch")

	// ErrDoubleFree indicates a pool block was freed twice.
	ErrDoubleFree = errors.New("double free")

	// ErrUnknownBlock indicates a pool block not issued by the allocator.
	ErrUnknownBlock = errors.New("unknown pool block")

	// ErrLeak indicates pool blocks were still outstanding at check time.
	ErrLeak = errors.New("pool leak")
)

// RequestStatus represents the completion status of an I/O request.
type RequestStatus int

// Request status values.
const (
	RequestStatusPending   RequestStatus = iota // Not yet completed
	RequestStatusSucceeded                      // Echo completed
	RequestStatusCancelled                      // Cancelled before processing
	RequestStatusFailed                         // Echo could not complete
)

// String returns a string representation of the request status.
func (s RequestStatus) String() string {
	switch s {
	case RequestStatusPending:
		return "pending"
	case RequestStatusSucceeded:
		return "succeeded"
	case RequestStatusCancelled:
		return "cancelled"
	case RequestStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final status.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusSucceeded || s == RequestStatusCancelled || s == RequestStatusFailed
}

// Error returns the corresponding error for the request status.
func (s RequestStatus) Error() error {
	switch s {
	case RequestStatusSucceeded:
		return nil
	case RequestStatusCancelled:
		return ErrCancelled
	default:
		return ErrFailed
	}
}
