// Package pkg provides shared utilities for the softdrv driver model.
//
// This package contains common functionality used by the driver core, the
// pool allocator and the simulated host, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for driver and pool errors
//   - [RequestStatus], the terminal status of an I/O request
//   - Error classification for log records
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentDevice, "device started", "device", handle)
//
// # Errors
//
// Common errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrDeviceNotReady) {
//	    // Start the device and retry
//	}
//
// [ErrContractViolation] is never returned. It is the value carried by
// the panics raised when the driver core detects its own misuse.
package pkg
