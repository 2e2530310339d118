package driver

import (
	"fmt"

	"github.com/ardnew/softdrv/pkg"
	"github.com/ardnew/softdrv/pool"
)

// Config holds the driver configuration.
//
// Pass this to [New]. All fields have sensible defaults set by [NewConfig].
type Config struct {
	// HardwareID is matched (case-insensitively) against the identity of
	// every device the host adds.
	//
	// Set by [NewConfig] to [DefaultHardwareID].
	HardwareID string

	// BufferLength is the fixed capacity of each device buffer.
	//
	// Set by [NewConfig] to [DefaultBufferLength].
	BufferLength int

	// Overflow selects how writes larger than BufferLength are handled.
	//
	// Set by [NewConfig] to [OverflowTruncate].
	Overflow OverflowPolicy

	// Workers is the number of dispatch goroutines per device. One worker
	// gives sequential dispatch.
	//
	// Set by [NewConfig] to [DefaultWorkers].
	Workers int

	// StopMode selects how Stop resolves queued requests. Remove always
	// purges.
	//
	// Set by [NewConfig] to [StopPurge].
	StopMode StopMode

	// PoolTag tags device buffer allocations.
	//
	// Set by [NewConfig] to [DefaultPoolTag].
	PoolTag pool.Tag

	// Allocator provides device buffers.
	//
	// Set by [NewConfig] to a [*pool.Verifier] over an unlimited heap pool.
	Allocator pool.Allocator

	// Binding allocates and releases device buffers. Nil selects the
	// scoped binding, which releases the buffer exactly once at remove.
	Binding ResourceBinding

	// BugCheck is invoked with an error wrapping [pkg.ErrContractViolation]
	// when the core detects its own misuse. The operation that detected
	// the violation is abandoned if BugCheck returns.
	//
	// Set by [NewConfig] to [DefaultBugCheck].
	BugCheck func(err error)
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		HardwareID:   DefaultHardwareID,
		BufferLength: DefaultBufferLength,
		Overflow:     OverflowTruncate,
		Workers:      DefaultWorkers,
		StopMode:     StopPurge,
		PoolTag:      pool.MakeTag(DefaultPoolTag),
		Allocator:    pool.NewVerifier(pool.NewHeap(0)),
		BugCheck:     DefaultBugCheck,
	}
}

// DefaultBugCheck panics with err.
func DefaultBugCheck(err error) {
	panic(err)
}

// validate checks the configuration for consistency.
func (c *Config) validate() error {
	switch {
	case c.HardwareID == "":
		return fmt.Errorf("config: empty hardware id: %w", pkg.ErrInvalidParameter)
	case c.BufferLength <= 0:
		return fmt.Errorf("config: buffer length %d: %w", c.BufferLength, pkg.ErrInvalidParameter)
	case c.Workers <= 0 || c.Workers > MaxWorkers:
		return fmt.Errorf("config: %d workers: %w", c.Workers, pkg.ErrInvalidParameter)
	case c.Overflow != OverflowTruncate && c.Overflow != OverflowReject:
		return fmt.Errorf("config: %s: %w", c.Overflow, pkg.ErrInvalidParameter)
	case c.StopMode != StopPurge && c.StopMode != StopDrain:
		return fmt.Errorf("config: %s: %w", c.StopMode, pkg.ErrInvalidParameter)
	case c.Allocator == nil && c.Binding == nil:
		return fmt.Errorf("config: no allocator: %w", pkg.ErrInvalidParameter)
	}
	return nil
}
