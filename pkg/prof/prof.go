//go:build profile

package prof

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Enabled reports whether the package was built with the "profile" tag.
const Enabled = true

// Profiling errors.
var (
	// ErrActive indicates a session is already running.
	ErrActive = errors.New("profiling session already active")

	// ErrStopped indicates the session was already stopped.
	ErrStopped = errors.New("profiling session stopped")
)

// Config selects the profiles collected by a [Session].
type Config struct {
	// CPUPath receives the CPU profile. Empty disables CPU profiling.
	CPUPath string

	// HeapPath receives a heap profile when the session stops. Empty
	// disables it.
	HeapPath string

	// BlockRate and MutexFraction are passed to the runtime while the
	// session runs. Zero leaves them disabled.
	BlockRate     int
	MutexFraction int
}

// Session is an active profiling run.
type Session struct {
	config  Config
	cpu     *os.File
	stopped bool
}

var (
	// activeMutex protects active.
	activeMutex sync.Mutex

	// active is the running session, if any.
	active *Session
)

// Start begins a profiling session. Only one session may run at a time.
func Start(cfg Config) (*Session, error) {
	activeMutex.Lock()
	defer activeMutex.Unlock()

	if active != nil {
		return nil, ErrActive
	}

	s := &Session{config: cfg}
	if cfg.CPUPath != "" {
		f, err := os.Create(cfg.CPUPath)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpu = f
	}
	runtime.SetBlockProfileRate(cfg.BlockRate)
	runtime.SetMutexProfileFraction(cfg.MutexFraction)

	active = s
	return s, nil
}

// Stop ends the session and writes the heap profile, if requested.
func (s *Session) Stop() error {
	activeMutex.Lock()
	defer activeMutex.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.stopped = true
	active = nil

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)

	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
	}
	if s.config.HeapPath != "" {
		errs = append(errs, writeFile("heap", s.config.HeapPath))
	}
	return errors.Join(errs...)
}

// Goroutines writes the stacks of all goroutines to w in text form.
func Goroutines(w io.Writer) error {
	return pprof.Lookup("goroutine").WriteTo(w, 1)
}

func writeFile(profile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s profile: %w", profile, err)
	}
	runtime.GC()
	if err := pprof.Lookup(profile).WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("%s profile: %w", profile, err)
	}
	return f.Close()
}
