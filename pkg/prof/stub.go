//go:build !profile

package prof

import "io"

// Enabled reports whether the package was built with the "profile" tag.
const Enabled = false

// Config selects the profiles collected by a [Session].
type Config struct {
	CPUPath       string
	HeapPath      string
	BlockRate     int
	MutexFraction int
}

// Session is a no-op when built without the "profile" tag.
type Session struct{}

// Start is a no-op when built without the "profile" tag.
func Start(_ Config) (*Session, error) {
	return &Session{}, nil
}

// Stop is a no-op when built without the "profile" tag.
func (s *Session) Stop() error {
	return nil
}

// Goroutines is a no-op when built without the "profile" tag.
func Goroutines(_ io.Writer) error {
	return nil
}
