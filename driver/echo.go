package driver

import (
	"fmt"

	"github.com/ardnew/softdrv/pkg"
)

// echo runs the echo operation for r against the device buffer.
//
// Writes store min(len, BufferLength) bytes, or fail under OverflowReject.
// Reads return min(len, stored) bytes, so a read before any write
// transfers nothing. The buffer lock makes each operation atomic with
// respect to every other request on the device.
func (dc *DeviceContext) echo(r *Request) (int, error) {
	if dc.echoHook != nil {
		dc.echoHook(r)
	}

	dc.bufMutex.Lock()
	defer dc.bufMutex.Unlock()

	if dc.block == nil {
		return 0, fmt.Errorf("device %s: %w", dc.handle, pkg.ErrInvalidBufferState)
	}
	buf := dc.block.Bytes()
	if buf == nil {
		return 0, fmt.Errorf("device %s: buffer freed: %w", dc.handle, pkg.ErrInvalidBufferState)
	}

	switch r.direction {
	case DirectionWrite:
		n := len(r.data)
		if n > len(buf) {
			if dc.overflow == OverflowReject {
				return 0, fmt.Errorf("device %s: write of %d bytes exceeds %d byte buffer: %w",
					dc.handle, n, len(buf), pkg.ErrBufferOverflow)
			}
			pkg.LogDebug(pkg.ComponentEcho, "write truncated",
				"device", dc.handle,
				"request", r.id,
				"requested", n,
				"stored", len(buf))
			n = len(buf)
		}
		copy(buf, r.data[:n])
		dc.stored = n
		return n, nil

	case DirectionRead:
		n := min(len(r.data), dc.stored)
		copy(r.data, buf[:n])
		return n, nil

	default:
		return 0, fmt.Errorf("device %s: %s: %w", dc.handle, r.direction, pkg.ErrInvalidParameter)
	}
}
